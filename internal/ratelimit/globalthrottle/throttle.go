// Package globalthrottle caps total request throughput per instance with a
// token bucket, ahead of any per-identity limiter.
package globalthrottle

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"gatehouse/internal/ratelimit/metrics"
	"gatehouse/pkg/platform/httputil"
)

type Throttle struct {
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Throttle)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Throttle) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Throttle) {
		t.metrics = m
	}
}

// New allows rps requests per second with bursts of up to burst. A
// non-positive rps disables the throttle.
func New(rps float64, burst int, opts ...Option) *Throttle {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	t := &Throttle{
		limiter: rate.NewLimiter(limit, burst),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allow consumes one token if available.
func (t *Throttle) Allow() bool {
	return t.limiter.Allow()
}

func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Allow() {
			t.logger.WarnContext(r.Context(), "global_throttle_triggered",
				"path", r.URL.Path,
			)
			if t.metrics != nil {
				t.metrics.IncrementThrottled()
			}
			w.Header().Set("Retry-After", "1")
			httputil.WriteErrorCode(w, http.StatusServiceUnavailable, "service_unavailable",
				"server is busy, please retry shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}
