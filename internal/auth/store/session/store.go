// Package session stores provider sessions keyed by their opaque id.
//
// Error contract: lookups of unknown or deleted sessions return
// sentinel.ErrNotFound (wrapped); infrastructure failures are wrapped with
// context.
package session

import (
	"time"
)

const (
	// DefaultTTL is the provider session lifetime.
	DefaultTTL = 30 * 24 * time.Hour
)
