package window

import (
	"context"
	"slices"
	"time"

	psync "gatehouse/pkg/platform/sync"
)

// InMemoryStore keeps timestamps in process memory. Quota is per instance.
type InMemoryStore struct {
	entries *psync.ShardedMap[[]time.Time]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: psync.NewShardedMap[[]time.Time]()}
}

func (s *InMemoryStore) Record(_ context.Context, key string, now time.Time, window time.Duration, max int) (bool, []time.Time, error) {
	var (
		allowed bool
		live    []time.Time
	)
	s.entries.With(key, func(m map[string][]time.Time) {
		stamps := prune(m[key], now.Add(-window))
		if len(stamps) < max {
			stamps = append(stamps, now)
			allowed = true
		}
		if len(stamps) == 0 {
			delete(m, key)
		} else {
			m[key] = stamps
		}
		live = slices.Clone(stamps)
	})
	return allowed, live, nil
}

func (s *InMemoryStore) Live(_ context.Context, key string, now time.Time, window time.Duration) ([]time.Time, error) {
	var live []time.Time
	s.entries.With(key, func(m map[string][]time.Time) {
		live = slices.Clone(prune(m[key], now.Add(-window)))
	})
	return live, nil
}

func (s *InMemoryStore) Sweep(_ context.Context, now time.Time, window time.Duration) (int, error) {
	cutoff := now.Add(-window)
	return s.entries.Sweep(func(_ string, stamps []time.Time) bool {
		return len(prune(stamps, cutoff)) == 0
	}), nil
}

// Len reports the number of tracked identities.
func (s *InMemoryStore) Len() int {
	return s.entries.Len()
}
