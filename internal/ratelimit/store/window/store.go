// Package window stores per-identity request timestamps for sliding-window
// limiters. A timestamp t is live at now when now-window < t.
package window

import (
	"context"
	"time"
)

// Store is the timestamp store behind one limiter.
type Store interface {
	// Record prunes key to its live timestamps, then appends now only if
	// fewer than max remain. It returns whether now was recorded and the
	// live timestamps after the operation, oldest first. The whole step is
	// atomic per key.
	Record(ctx context.Context, key string, now time.Time, window time.Duration, max int) (bool, []time.Time, error)
	// Live returns the live timestamps for key, oldest first, without
	// modifying the store.
	Live(ctx context.Context, key string, now time.Time, window time.Duration) ([]time.Time, error)
	// Sweep removes keys that have no live timestamps left.
	Sweep(ctx context.Context, now time.Time, window time.Duration) (int, error)
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
