package csrf

import (
	"log/slog"
	"net/http"

	"gatehouse/internal/identity"
	"gatehouse/internal/platform/privacy"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

const (
	HeaderToken = "X-CSRF-Token"

	failureCode    = "csrf_failed"
	failureMessage = "request origin verification failed"
)

// FailureResponse is the uniform 403 body for every CSRF rejection.
type FailureResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Middleware struct {
	checker  OriginChecker
	manager  *Manager
	resolver identity.Resolver
	metrics  *Metrics
	logger   *slog.Logger
}

type MiddlewareOption func(*Middleware)

// WithIdentityResolver sets how session fingerprints are derived; it must
// match the resolver used by the token handler.
func WithIdentityResolver(res identity.Resolver) MiddlewareOption {
	return func(m *Middleware) {
		m.resolver = res
	}
}

func WithMiddlewareMetrics(metrics *Metrics) MiddlewareOption {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

func WithMiddlewareLogger(logger *slog.Logger) MiddlewareOption {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMiddleware(checker OriginChecker, manager *Manager, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		checker: checker,
		manager: manager,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Protect applies the origin and content-type check to state-changing
// methods.
func (m *Middleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isUnsafe(r.Method) && !m.checker.SimpleCheck(r) {
			m.reject(w, r, "origin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireToken applies the simple check and also requires the caller's
// token in the X-CSRF-Token header.
func (m *Middleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.checker.SimpleCheck(r) {
			m.reject(w, r, "origin")
			return
		}
		token := r.Header.Get(HeaderToken)
		if token == "" || !m.manager.ValidateToken(r.Context(), m.resolver.SessionFingerprint(r), token) {
			m.reject(w, r, "token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	m.logger.WarnContext(r.Context(), "csrf_check_failed",
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"ip_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(r.Context())),
		"request_id", requestcontext.RequestID(r.Context()),
	)
	if m.metrics != nil {
		m.metrics.OriginFailures.WithLabelValues(reason).Inc()
	}
	WriteFailure(w)
}

// WriteFailure writes the uniform CSRF rejection.
func WriteFailure(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusForbidden, FailureResponse{
		Error:   failureCode,
		Message: failureMessage,
	})
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
