package window

import (
	"context"
	"log/slog"
	"time"

	"gatehouse/pkg/platform/circuit"
)

// ResilientStore sends every operation to primary. After repeated primary
// failures the breaker opens and answers come from fallback; primary keeps
// being probed and takes over again once it recovers. While open, writes
// go to both so fallback holds the recent traffic.
type ResilientStore struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewResilientStore(primary, fallback Store, breaker *circuit.Breaker, logger *slog.Logger) *ResilientStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientStore{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (s *ResilientStore) Record(ctx context.Context, key string, now time.Time, window time.Duration, max int) (bool, []time.Time, error) {
	recorded, live, err := s.primary.Record(ctx, key, now, window, max)
	if err == nil && s.succeeded(ctx) {
		return recorded, live, nil
	}
	if err != nil && !s.failed(ctx, err) {
		return false, nil, err
	}
	return s.fallback.Record(ctx, key, now, window, max)
}

func (s *ResilientStore) Live(ctx context.Context, key string, now time.Time, window time.Duration) ([]time.Time, error) {
	live, err := s.primary.Live(ctx, key, now, window)
	if err == nil && s.succeeded(ctx) {
		return live, nil
	}
	if err != nil && !s.failed(ctx, err) {
		return nil, err
	}
	return s.fallback.Live(ctx, key, now, window)
}

// Sweep sweeps both stores; only the fallback count is reported since the
// primary expires keys on its own.
func (s *ResilientStore) Sweep(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	if _, err := s.primary.Sweep(ctx, now, window); err != nil {
		s.logger.WarnContext(ctx, "primary window store sweep failed", "breaker", s.breaker.Name(), "error", err)
	}
	return s.fallback.Sweep(ctx, now, window)
}

func (s *ResilientStore) succeeded(ctx context.Context) bool {
	usePrimary, t := s.breaker.RecordSuccess()
	if t.Closed {
		s.logger.InfoContext(ctx, "window store circuit closed", "breaker", s.breaker.Name())
	}
	return usePrimary
}

func (s *ResilientStore) failed(ctx context.Context, err error) bool {
	useFallback, t := s.breaker.RecordFailure()
	if t.Opened {
		s.logger.WarnContext(ctx, "window store circuit opened, using local fallback",
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
	return useFallback
}
