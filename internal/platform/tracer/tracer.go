// Package tracer is a small tracing facade so services can emit spans
// without importing OpenTelemetry directly. Use NewNoop in tests and
// NewOTel in the server.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Span is an active span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations are safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// HashEmail returns a short stable digest so traces can be correlated per
// account without carrying the address.
func HashEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:8])
}

// Span names used by the auth service.
const (
	SpanAuthenticate      = "auth.authenticate"
	SpanProvisionFederate = "auth.provision_federated"
	SpanStartSession      = "auth.start_session"
	SpanOAuthExchange     = "auth.oauth_exchange"
)

// Attribute keys.
const (
	AttrEmailHash = "user.email_hash"
	AttrProvider  = "auth.provider"
	AttrOutcome   = "auth.outcome"
	AttrCreated   = "user.created"
)
