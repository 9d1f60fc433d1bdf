package middleware

import (
	"net/http"
	"strconv"
	"time"

	"gatehouse/internal/identity"
	"gatehouse/internal/ratelimit/limiter"
	"gatehouse/internal/ratelimit/models"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

const (
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"
)

// RateLimit enforces l per client identity. The identity resolved by the
// metadata middleware is preferred; otherwise it is derived from headers.
// Store failures let the request through.
func RateLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := requestcontext.Identity(ctx)
			if key == "" {
				key = identity.Identify(r)
			}

			result, err := l.Check(ctx, key)
			if err != nil {
				l.ReportStoreError(ctx, key, err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(headerLimit, strconv.Itoa(result.Limit))
			w.Header().Set(headerRemaining, strconv.Itoa(result.Remaining))

			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	resetTime := ""
	if !result.ResetAt.IsZero() {
		resetTime = result.ResetAt.UTC().Format(time.RFC3339)
		w.Header().Set(headerReset, resetTime)
	}
	w.Header().Set(headerRemaining, "0")
	w.Header().Set(headerRetryAfter, strconv.Itoa(result.RetryAfterSeconds()))

	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Success:   false,
		Error:     "rate_limit_exceeded",
		Message:   "Too many requests, please try again later.",
		ResetTime: resetTime,
	})
}
