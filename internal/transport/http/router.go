package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "gatehouse/internal/auth/handler"
	authmodels "gatehouse/internal/auth/models"
	"gatehouse/internal/authz"
	contacthandler "gatehouse/internal/contact/handler"
	"gatehouse/internal/csrf"
	"gatehouse/internal/identity"
	"gatehouse/internal/platform/health"
	profilehandler "gatehouse/internal/profile/handler"
	"gatehouse/internal/ratelimit/globalthrottle"
	"gatehouse/internal/ratelimit/limiter"
	ratelimitmw "gatehouse/internal/ratelimit/middleware"
	"gatehouse/pkg/platform/middleware/metadata"
	"gatehouse/pkg/platform/middleware/request"
)

const defaultRequestTimeout = 30 * time.Second

// Limiters holds one limiter per protected surface.
type Limiters struct {
	SignIn  *limiter.Limiter
	Contact *limiter.Limiter
	General *limiter.Limiter
}

// Guards pairs the two session authorities. Legacy guards the protected
// profile routes; Session guards the admin surfaces.
type Guards struct {
	Legacy  *authz.Guard
	Session *authz.Guard
}

// Dependencies is everything the router mounts. Optional fields may be nil.
type Dependencies struct {
	Logger           *slog.Logger
	Clock            func() time.Time
	RequestTimeout   time.Duration
	IdentityResolver identity.Resolver
	Gatherer         prometheus.Gatherer
	RequestMetrics   *request.Metrics
	Throttle         *globalthrottle.Throttle

	CSRF        *csrf.Middleware
	CSRFHandler *csrf.Handler
	Limiters    Limiters
	Guards      Guards

	Auth    *authhandler.Handler
	Contact *contacthandler.Handler
	Profile *profilehandler.Handler
	Health  *health.Handler
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(d Dependencies) http.Handler {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(request.RequestTime(clock))
	r.Use(metadata.NewMiddleware(d.IdentityResolver).Handler)
	r.Use(request.Logger(d.Logger))
	if d.RequestMetrics != nil {
		r.Use(request.Instrument(d.RequestMetrics))
	}
	if d.Throttle != nil {
		r.Use(d.Throttle.Middleware)
	}
	r.Use(request.Timeout(timeout))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(limit(d.Limiters.General)...)
		d.CSRFHandler.Register(r)
	})

	signIn := append([]func(http.Handler) http.Handler{d.CSRF.Protect}, limit(d.Limiters.SignIn)...)
	d.Auth.Register(r, signIn...)

	d.Contact.Register(r, contacthandler.Routes{
		Submit: append([]func(http.Handler) http.Handler{d.CSRF.Protect}, limit(d.Limiters.Contact)...),
		Admin:  []func(http.Handler) http.Handler{d.Guards.Session.AdminOnly()},
	})

	d.Profile.Register(r, profilehandler.Routes{
		Protected: []func(http.Handler) http.Handler{d.Guards.Legacy.Authenticated()},
		Mutate:    []func(http.Handler) http.Handler{d.CSRF.Protect},
		Directory: append(limit(d.Limiters.General),
			d.Guards.Legacy.Role(authmodels.RoleAdmin, authmodels.RoleModerator)),
	})

	return r
}

func limit(l *limiter.Limiter) []func(http.Handler) http.Handler {
	if l == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{ratelimitmw.RateLimit(l)}
}
