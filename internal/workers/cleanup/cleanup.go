// Package cleanup runs periodic sweeps over in-process state: limiter
// windows, CSRF tokens, provider sessions and OAuth states.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gatehouse/pkg/requestcontext"
)

const DefaultInterval = 5 * time.Minute

// Sweeper removes expired entries and reports how many it removed.
type Sweeper interface {
	Cleanup(ctx context.Context) (int, error)
}

// SweeperFunc adapts a function to Sweeper.
type SweeperFunc func(ctx context.Context) (int, error)

func (f SweeperFunc) Cleanup(ctx context.Context) (int, error) {
	return f(ctx)
}

type target struct {
	name    string
	sweeper Sweeper
}

// Result maps each target name to the entries it removed in one run.
type Result map[string]int

func (r Result) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// Worker sweeps its registered targets on a fixed interval. The run time
// is placed on the context, so sweepers reading requestcontext.Now agree
// on "now".
type Worker struct {
	name     string
	targets  []target
	interval time.Duration
	clock    func() time.Time
	logger   *slog.Logger
}

type Option func(*Worker)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(w *Worker) {
		w.clock = clock
	}
}

// WithSweeper registers a target. Targets run in registration order.
func WithSweeper(name string, sweeper Sweeper) Option {
	return func(w *Worker) {
		w.targets = append(w.targets, target{name: name, sweeper: sweeper})
	}
}

func New(name string, opts ...Option) (*Worker, error) {
	w := &Worker{
		name:     name,
		interval: DefaultInterval,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	if len(w.targets) == 0 {
		return nil, fmt.Errorf("cleanup worker %q has no sweepers", name)
	}
	return w, nil
}

func (w *Worker) Name() string {
	return w.name
}

// Start sweeps every interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, w.name+"_cleanup_failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce sweeps every target once. A failing target does not stop the
// others; failures are joined.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	start := w.clock()
	ctx = requestcontext.WithTime(ctx, start)
	res := make(Result, len(w.targets))
	var errs []error

	for _, t := range w.targets {
		removed, err := t.sweeper.Cleanup(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", t.name, err))
			continue
		}
		res[t.name] = removed
	}

	w.logger.InfoContext(ctx, w.name+"_cleanup_completed",
		"removed", res.Total(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, errors.Join(errs...)
}
