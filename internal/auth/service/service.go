package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore,SessionStore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatehouse/internal/auth/legacytoken"
	authmetrics "gatehouse/internal/auth/metrics"
	"gatehouse/internal/auth/models"
	"gatehouse/internal/platform/privacy"
	"gatehouse/internal/platform/tracer"
	"gatehouse/internal/sentinel"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/secrets"
)

// UserStore is the user persistence the service needs.
// Find methods return sentinel.ErrNotFound when the user does not exist.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindOrCreateByEmail(ctx context.Context, email string, user *models.User) (*models.User, error)
}

// SessionStore is the provider session persistence the service needs.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, sessionID string) error
}

const (
	DefaultSessionTTL   = 30 * 24 * time.Hour
	ProviderCredentials = "credentials"
	sessionIDBytes      = 32
)

type Service struct {
	users      UserStore
	sessions   SessionStore
	issuer     *legacytoken.Issuer
	sessionTTL time.Duration
	logger     *slog.Logger
	metrics    *authmetrics.Metrics
	tracer     tracer.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *authmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithSessionTTL sets the provider session lifetime. Non-positive values
// keep the default.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func WithIssuer(issuer *legacytoken.Issuer) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

func New(users UserStore, sessions SessionStore, opts ...Option) *Service {
	svc := &Service{
		users:      users,
		sessions:   sessions,
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.NewNoop()
	}
	return svc
}

// Authenticate verifies an email and password pair. Each failure mode has
// its own error; see IsCredentialFailure.
func (s *Service) Authenticate(ctx context.Context, email, password string) (identity *models.Identity, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanAuthenticate,
		tracer.String(tracer.AttrEmailHash, tracer.HashEmail(email)),
	)
	defer func() {
		outcome := signInOutcome(err)
		span.SetAttributes(tracer.String(tracer.AttrOutcome, outcome))
		span.End(err)
		if s.metrics != nil {
			s.metrics.IncrementSignIn(outcome)
			s.metrics.ObserveSignInDuration(time.Since(start).Seconds())
		}
	}()

	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logSignInFailure(ctx, email, ErrUserNotFound)
			return nil, ErrUserNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if user.IsFederated() {
		s.logSignInFailure(ctx, email, ErrNoPasswordSet)
		return nil, ErrNoPasswordSet
	}

	// bcrypt is not interruptible; the compare completes even if the
	// client has gone away.
	ctx = context.WithoutCancel(ctx)
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, secrets.ErrMismatch) {
			s.logSignInFailure(ctx, email, ErrPasswordMismatch)
			return nil, ErrPasswordMismatch
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "signin_succeeded",
		"user_id", user.ID.String(),
		"method", ProviderCredentials,
		"request_id", requestcontext.RequestID(ctx),
	)
	return user.Identity(), nil
}

// ProvisionFederated returns the user for a federated profile, creating a
// password-less USER account on first sign-in.
func (s *Service) ProvisionFederated(ctx context.Context, provider string, profile *models.FederatedProfile) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanProvisionFederate, tracer.String(tracer.AttrProvider, provider))
	var err error
	defer func() { span.End(err) }()

	if profile == nil || profile.Email == "" {
		err = ErrProfileIncomplete
		return nil, err
	}

	now := requestcontext.Now(ctx)
	candidate := &models.User{
		ID:        id.NewUserID(),
		Email:     profile.Email,
		Name:      profile.Name,
		Image:     profile.Image,
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user, err := s.users.FindOrCreateByEmail(ctx, profile.Email, candidate)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to provision user")
	}

	created := user.ID == candidate.ID
	span.SetAttributes(tracer.Bool(tracer.AttrCreated, created))
	if created {
		s.logger.InfoContext(ctx, "user_provisioned",
			"user_id", user.ID.String(),
			"provider", provider,
			"email", privacy.RedactEmail(user.Email),
		)
		if s.metrics != nil {
			s.metrics.IncrementProvisioned(provider)
		}
	}
	return user, nil
}

// StartSession creates a provider session. Id and role are copied onto the
// session so resolving it needs no user lookup.
func (s *Service) StartSession(ctx context.Context, identity *models.Identity, provider, device string) (*models.Session, error) {
	if identity == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identity is required")
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanStartSession, tracer.String(tracer.AttrProvider, provider))
	var err error
	defer func() { span.End(err) }()

	sessionID, err := secrets.TokenURL(sessionIDBytes)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	session := &models.Session{
		ID:        sessionID,
		UserID:    identity.ID,
		Email:     identity.Email,
		Name:      identity.Name,
		Image:     identity.Image,
		Role:      identity.Role,
		Provider:  provider,
		Device:    device,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err = s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}

	s.logger.InfoContext(ctx, "session_started",
		"user_id", identity.ID.String(),
		"provider", provider,
		"device", device,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementSessionStarted(provider)
	}
	return session, nil
}

// EndSession deletes a provider session. Ending an unknown session is not
// an error.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to end session")
	}
	s.logger.InfoContext(ctx, "session_ended", "request_id", requestcontext.RequestID(ctx))
	if s.metrics != nil {
		s.metrics.IncrementSessionEnded()
	}
	return nil
}

// IssueLegacyToken signs a legacy cookie token for identity.
func (s *Service) IssueLegacyToken(ctx context.Context, identity *models.Identity) (string, *models.Claims, error) {
	if s.issuer == nil {
		return "", nil, dErrors.New(dErrors.CodeInternal, "legacy token issuer not configured")
	}
	token, claims, err := s.issuer.Issue(ctx, identity)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return token, claims, nil
}

// SessionTTL is the lifetime applied to new sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

func (s *Service) logSignInFailure(ctx context.Context, email string, reason error) {
	s.logger.WarnContext(ctx, "signin_failed",
		"email", privacy.RedactEmail(email),
		"reason", reason.Error(),
		"ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		"request_id", requestcontext.RequestID(ctx),
	)
}
