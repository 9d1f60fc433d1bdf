// Package app assembles the gatehouse server from configuration: stores,
// limiters, the CSRF manager, session authorities, handlers and the
// background sweepers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	authhandler "gatehouse/internal/auth/handler"
	"gatehouse/internal/auth/legacytoken"
	authmetrics "gatehouse/internal/auth/metrics"
	"gatehouse/internal/auth/resolver"
	authservice "gatehouse/internal/auth/service"
	sessionstore "gatehouse/internal/auth/store/session"
	userstore "gatehouse/internal/auth/store/user"
	"gatehouse/internal/authz"
	contacthandler "gatehouse/internal/contact/handler"
	contactservice "gatehouse/internal/contact/service"
	contactstore "gatehouse/internal/contact/store"
	"gatehouse/internal/csrf"
	"gatehouse/internal/identity"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/database"
	"gatehouse/internal/platform/health"
	redisclient "gatehouse/internal/platform/redis"
	"gatehouse/internal/platform/tracer"
	profilehandler "gatehouse/internal/profile/handler"
	profileservice "gatehouse/internal/profile/service"
	ratelimitconfig "gatehouse/internal/ratelimit/config"
	"gatehouse/internal/ratelimit/globalthrottle"
	"gatehouse/internal/ratelimit/limiter"
	ratelimitmetrics "gatehouse/internal/ratelimit/metrics"
	"gatehouse/internal/ratelimit/store/window"
	"gatehouse/internal/seeder"
	httptransport "gatehouse/internal/transport/http"
	"gatehouse/internal/workers/cleanup"
	"gatehouse/pkg/platform/circuit"
	"gatehouse/pkg/platform/middleware/request"
	"gatehouse/pkg/requestcontext"
)

// App is a fully wired server.
type App struct {
	Handler  http.Handler
	Registry *prometheus.Registry

	// Users is exposed for seeding and tests.
	Users UserStore

	logger  *slog.Logger
	workers []*cleanup.Worker
	closers []func() error
}

// UserStore is implemented by both the in-memory and the SQL user stores.
type UserStore interface {
	authservice.UserStore
	profileservice.UserStore
	seeder.UserStore
}

type sessionStore interface {
	authservice.SessionStore
	resolver.SessionLookup
	profileservice.SessionRevoker
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type options struct {
	httpClient *http.Client
	clock      func() time.Time
	tracer     tracer.Tracer
}

type Option func(*options)

// WithHTTPClient sets the client used for OAuth token and profile calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithTracer(t tracer.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// New builds the application. Storage is selected from cfg: DATABASE_URL
// picks the SQL stores, REDIS_URL the shared limiter and session stores,
// and anything unset falls back to process memory.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{clock: time.Now, tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{Registry: reg, logger: logger}
	healthHandler := health.New(string(cfg.Environment))

	pool, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if pool != nil {
		a.closers = append(a.closers, pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			a.Close() //nolint:errcheck // best-effort cleanup on init failure
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		healthHandler.RegisterCheck("database", pool.Health)
	}

	rdb, err := redisclient.New(ctx, cfg.RedisURL, reg)
	if err != nil {
		a.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
		healthHandler.RegisterCheck("redis", func(ctx context.Context) error {
			rdb.RecordPoolStats()
			return rdb.Health(ctx)
		})
	}

	var (
		users    UserStore
		contacts contactservice.Store
		sessions sessionStore
	)
	if pool != nil {
		users = userstore.NewSQL(pool)
		contacts = contactstore.NewSQL(pool)
	} else {
		users = userstore.New()
		contacts = contactstore.New()
	}
	if rdb != nil {
		sessions = sessionstore.NewRedis(rdb.Client)
	} else {
		sessions = sessionstore.New()
	}
	a.Users = users

	policies, err := ratelimitconfig.LoadPolicies(cfg.RateLimit.PolicyFile)
	if err != nil {
		a.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, err
	}
	rlMetrics := ratelimitmetrics.New(reg)
	newLimiter := func(name string) *limiter.Limiter {
		limiterOpts := []limiter.Option{
			limiter.WithMetrics(rlMetrics),
			limiter.WithLogger(logger),
			limiter.WithClock(o.clock),
		}
		if rdb != nil {
			store := window.NewResilientStore(
				window.NewRedisStore(rdb.Client, name),
				window.NewInMemoryStore(),
				circuit.New("ratelimit_"+name),
				logger,
			)
			limiterOpts = append(limiterOpts, limiter.WithStore(store))
		}
		return limiter.FromPolicy(policies[name], limiterOpts...)
	}
	limiters := httptransport.Limiters{
		SignIn:  newLimiter(ratelimitconfig.PolicySignIn),
		Contact: newLimiter(ratelimitconfig.PolicyContact),
		General: newLimiter(ratelimitconfig.PolicyGeneral),
	}

	idResolver := identity.Resolver{}
	csrfMetrics := csrf.NewMetrics(reg)
	csrfManager := csrf.NewManager(
		csrf.WithTTL(cfg.CSRF.TokenTTL),
		csrf.WithClock(o.clock),
		csrf.WithMetrics(csrfMetrics),
		csrf.WithLogger(logger),
	)
	csrfMiddleware := csrf.NewMiddleware(
		csrf.OriginChecker{AppURL: cfg.AppURL, AuthURL: cfg.AuthURL, Production: cfg.IsProduction()},
		csrfManager,
		csrf.WithIdentityResolver(idResolver),
		csrf.WithMiddlewareMetrics(csrfMetrics),
		csrf.WithMiddlewareLogger(logger),
	)

	issuer := legacytoken.NewIssuer(cfg.Auth.TokenSigningKey, cfg.Auth.LegacyTokenTTL)
	legacyResolver := resolver.NewLegacyCookieResolver(issuer)
	sessionResolver := resolver.NewProviderSessionResolver(sessions)

	authMetrics := authmetrics.New(reg)
	auth := authservice.New(users, sessions,
		authservice.WithLogger(logger),
		authservice.WithMetrics(authMetrics),
		authservice.WithTracer(o.tracer),
		authservice.WithSessionTTL(cfg.Auth.SessionTTL),
		authservice.WithIssuer(issuer),
	)

	baseURL := cfg.AuthURL
	if baseURL == "" {
		baseURL = cfg.AppURL
	}
	fedOpts := []authservice.FederationOption{
		authservice.WithGoogle(cfg.OAuth.Google.ClientID, cfg.OAuth.Google.ClientSecret),
		authservice.WithGitHub(cfg.OAuth.GitHub.ClientID, cfg.OAuth.GitHub.ClientSecret),
		authservice.WithFederationLogger(logger),
		authservice.WithFederationTracer(o.tracer),
	}
	if o.httpClient != nil {
		fedOpts = append(fedOpts, authservice.WithHTTPClient(o.httpClient))
	}
	federation := authservice.NewFederation(baseURL, fedOpts...)

	guards := httptransport.Guards{
		Legacy:  authz.NewGuard(legacyResolver, authz.WithLogger(logger)),
		Session: authz.NewGuard(resolver.NewChain(sessionResolver, legacyResolver), authz.WithLogger(logger)),
	}

	a.Handler = httptransport.NewRouter(httptransport.Dependencies{
		Logger:           logger,
		Clock:            o.clock,
		IdentityResolver: idResolver,
		Gatherer:         reg,
		RequestMetrics:   request.NewMetrics(reg),
		Throttle: globalthrottle.New(cfg.RateLimit.GlobalRPS, cfg.RateLimit.GlobalBurst,
			globalthrottle.WithLogger(logger), globalthrottle.WithMetrics(rlMetrics)),
		CSRF:        csrfMiddleware,
		CSRFHandler: csrf.NewHandler(csrfManager, idResolver, logger),
		Limiters:    limiters,
		Guards:      guards,
		Auth: authhandler.New(auth, federation, issuer, sessionResolver, logger, authhandler.Config{
			AppURL:        cfg.AppURL,
			SecureCookies: cfg.IsProduction(),
		}),
		Contact: contacthandler.New(contactservice.New(contacts, logger), sessionResolver, logger),
		Profile: profilehandler.New(profileservice.New(users, sessions, logger), guards.Legacy, logger, cfg.IsProduction()),
		Health:  healthHandler,
	})

	workers, err := newWorkers(cfg, logger, o.clock, limiters, csrfManager, federation, sessions, authMetrics)
	if err != nil {
		a.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, err
	}
	a.workers = workers

	if cfg.SeedDemoUsers {
		if _, err := seeder.New(users, logger).SeedAll(ctx); err != nil {
			a.Close() //nolint:errcheck // best-effort cleanup on init failure
			return nil, fmt.Errorf("seed demo users: %w", err)
		}
	}

	return a, nil
}

func newWorkers(
	cfg config.Server,
	logger *slog.Logger,
	clock func() time.Time,
	limiters httptransport.Limiters,
	csrfManager *csrf.Manager,
	federation *authservice.Federation,
	sessions sessionStore,
	authMetrics *authmetrics.Metrics,
) ([]*cleanup.Worker, error) {
	common := []cleanup.Option{cleanup.WithLogger(logger), cleanup.WithClock(clock)}

	ratelimitWorker, err := cleanup.New("ratelimit", append(common,
		cleanup.WithInterval(cfg.RateLimit.CleanupInterval),
		cleanup.WithSweeper(limiters.SignIn.Name(), limiters.SignIn),
		cleanup.WithSweeper(limiters.Contact.Name(), limiters.Contact),
		cleanup.WithSweeper(limiters.General.Name(), limiters.General),
	)...)
	if err != nil {
		return nil, err
	}

	csrfWorker, err := cleanup.New("csrf", append(common,
		cleanup.WithInterval(cfg.CSRF.CleanupInterval),
		cleanup.WithSweeper("tokens", csrfManager),
	)...)
	if err != nil {
		return nil, err
	}

	sessionWorker, err := cleanup.New("session", append(common,
		cleanup.WithInterval(cfg.Auth.SessionSweep),
		cleanup.WithSweeper("sessions", cleanup.SweeperFunc(func(ctx context.Context) (int, error) {
			n, err := sessions.DeleteExpired(ctx, requestcontext.Now(ctx))
			authMetrics.AddSessionsSwept(n)
			return n, err
		})),
		cleanup.WithSweeper("oauth_states", federation),
	)...)
	if err != nil {
		return nil, err
	}

	return []*cleanup.Worker{ratelimitWorker, csrfWorker, sessionWorker}, nil
}

// RunWorkers runs every sweeper until ctx is cancelled.
func (a *App) RunWorkers(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range a.workers {
		g.Go(func() error {
			a.logger.InfoContext(ctx, "cleanup worker started", "worker", w.Name())
			err := w.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Close releases database and Redis connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
