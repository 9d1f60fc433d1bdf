// Package limiter implements the named sliding-window limiter. Each
// instance owns its quota; nothing is shared through package state.
package limiter

import (
	"context"
	"log/slog"
	"time"

	"gatehouse/internal/ratelimit/config"
	"gatehouse/internal/ratelimit/metrics"
	"gatehouse/internal/ratelimit/models"
	"gatehouse/internal/ratelimit/store/window"
)

type Limiter struct {
	name        string
	window      time.Duration
	maxRequests int

	store   window.Store
	clock   func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Limiter)

// WithStore replaces the default in-memory store.
func WithStore(store window.Store) Option {
	return func(l *Limiter) {
		if store != nil {
			l.store = store
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a limiter allowing maxRequests per identity within window.
func New(name string, windowSize time.Duration, maxRequests int, opts ...Option) *Limiter {
	l := &Limiter{
		name:        name,
		window:      windowSize,
		maxRequests: maxRequests,
		store:       window.NewInMemoryStore(),
		clock:       time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromPolicy creates a limiter from a named policy.
func FromPolicy(p config.Policy, opts ...Option) *Limiter {
	return New(p.Name, p.Window, p.MaxRequests, opts...)
}

func (l *Limiter) Name() string { return l.name }

func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) MaxRequests() int { return l.maxRequests }

// IsRateLimited reports whether identity has exhausted its quota. When it
// has not, the request is recorded against the quota. Rejected requests
// are never recorded.
func (l *Limiter) IsRateLimited(ctx context.Context, identity string) (bool, error) {
	allowed, _, err := l.store.Record(ctx, identity, l.clock(), l.window, l.maxRequests)
	if err != nil {
		return false, err
	}
	l.observe(allowed)
	return !allowed, nil
}

// Remaining returns how many more requests identity may make now.
func (l *Limiter) Remaining(ctx context.Context, identity string) (int, error) {
	live, err := l.store.Live(ctx, identity, l.clock(), l.window)
	if err != nil {
		return 0, err
	}
	return l.remaining(live), nil
}

// ResetTime returns when the oldest live request leaves the window, or the
// zero time when identity has no live requests.
func (l *Limiter) ResetTime(ctx context.Context, identity string) (time.Time, error) {
	live, err := l.store.Live(ctx, identity, l.clock(), l.window)
	if err != nil {
		return time.Time{}, err
	}
	return l.resetAt(live), nil
}

// Check records the request when allowed and returns the full outcome in
// one store round trip.
func (l *Limiter) Check(ctx context.Context, identity string) (*models.Result, error) {
	now := l.clock()
	allowed, live, err := l.store.Record(ctx, identity, now, l.window, l.maxRequests)
	if err != nil {
		return nil, err
	}
	l.observe(allowed)

	result := &models.Result{
		Allowed:   allowed,
		Limit:     l.maxRequests,
		Remaining: l.remaining(live),
		ResetAt:   l.resetAt(live),
	}
	if !allowed && !result.ResetAt.IsZero() {
		result.RetryAfter = result.ResetAt.Sub(now)
	}
	return result, nil
}

// Cleanup drops identities whose requests have all left the window.
func (l *Limiter) Cleanup(ctx context.Context) (int, error) {
	removed, err := l.store.Sweep(ctx, l.clock(), l.window)
	if err != nil {
		return 0, err
	}
	if l.metrics != nil {
		l.metrics.AddSwept(l.name, removed)
	}
	return removed, nil
}

// ReportStoreError records a store failure that the caller chose to
// tolerate.
func (l *Limiter) ReportStoreError(ctx context.Context, identity string, err error) {
	l.logger.WarnContext(ctx, "rate limit store unavailable, allowing request",
		"limiter", l.name,
		"identity", identity,
		"error", err,
	)
	if l.metrics != nil {
		l.metrics.IncrementStoreErrors(l.name)
	}
}

func (l *Limiter) remaining(live []time.Time) int {
	return max(0, l.maxRequests-len(live))
}

func (l *Limiter) resetAt(live []time.Time) time.Time {
	if len(live) == 0 {
		return time.Time{}
	}
	return live[0].Add(l.window)
}

func (l *Limiter) observe(allowed bool) {
	if l.metrics == nil {
		return
	}
	if allowed {
		l.metrics.IncrementAllowed(l.name)
	} else {
		l.metrics.IncrementLimited(l.name)
	}
}
