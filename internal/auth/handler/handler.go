package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/auth/legacytoken"
	"gatehouse/internal/auth/models"
	"gatehouse/internal/auth/resolver"
	"gatehouse/internal/auth/service"
	"gatehouse/internal/identity"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

// MsgInvalidCredentials is the only answer a failed credential sign-in gets.
const MsgInvalidCredentials = "invalid email or password"

// Service is the sign-in and session surface the handler drives.
type Service interface {
	Authenticate(ctx context.Context, email, password string) (*models.Identity, error)
	IssueLegacyToken(ctx context.Context, identity *models.Identity) (string, *models.Claims, error)
	ProvisionFederated(ctx context.Context, provider string, profile *models.FederatedProfile) (*models.User, error)
	StartSession(ctx context.Context, identity *models.Identity, provider, device string) (*models.Session, error)
	EndSession(ctx context.Context, sessionID string) error
	SessionTTL() time.Duration
}

// Providers is the federated sign-in surface.
type Providers interface {
	Providers() []models.ProviderInfo
	AuthCodeURL(ctx context.Context, providerID string) (string, error)
	Exchange(ctx context.Context, providerID, code, state string) (*models.FederatedProfile, error)
}

type Config struct {
	// AppURL is where a completed federated sign-in lands.
	AppURL        string
	SecureCookies bool
}

// Handler serves the legacy token endpoints and the provider session
// endpoints.
type Handler struct {
	auth      Service
	providers Providers
	issuer    *legacytoken.Issuer
	legacy    resolver.SessionResolver
	sessions  resolver.SessionResolver
	logger    *slog.Logger
	cfg       Config
}

func New(auth Service, providers Providers, issuer *legacytoken.Issuer, sessions resolver.SessionResolver, logger *slog.Logger, cfg Config) *Handler {
	if cfg.AppURL == "" {
		cfg.AppURL = "/"
	}
	return &Handler{
		auth:      auth,
		providers: providers,
		issuer:    issuer,
		legacy:    resolver.NewLegacyCookieResolver(issuer),
		sessions:  sessions,
		logger:    logger,
		cfg:       cfg,
	}
}

// Register mounts the auth routes. signIn wraps the credential sign-in
// routes, typically with the CSRF check and the sign-in limiter.
func (h *Handler) Register(r chi.Router, signIn ...func(http.Handler) http.Handler) {
	r.With(signIn...).Post("/api/auth/login", h.HandleLogin)
	r.Get("/api/auth/login", h.HandleLoginStatus)
	r.Post("/api/auth/logout", h.HandleLogout)
	r.Get("/api/auth/logout", h.HandleLogoutStatus)

	r.With(signIn...).Post("/api/auth/signin/credentials", h.HandleCredentialsSignIn)
	r.Get("/api/auth/session", h.HandleSession)
	r.Post("/api/auth/signout", h.HandleSignOut)
	r.Get("/api/auth/providers", h.HandleProviders)
	r.Get("/api/auth/signin/{provider}", h.HandleProviderSignIn)
	r.Get("/api/auth/callback/{provider}", h.HandleProviderCallback)
}

// HandleLogin implements POST /api/auth/login: credential sign-in that sets
// the legacy auth-token cookie.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	token, _, err := h.auth.IssueLegacyToken(ctx, user)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue legacy token",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, h.issuer.Cookie(token, h.cfg.SecureCookies))
	httputil.WriteJSON(w, http.StatusOK, models.LoginResponse{
		Success:   true,
		Message:   "Login successful",
		Data:      models.LoginData{User: user, Token: token},
		Timestamp: requestcontext.Now(ctx),
	})
}

// HandleLoginStatus implements GET /api/auth/login.
func (h *Handler) HandleLoginStatus(w http.ResponseWriter, r *http.Request) {
	claims, err := h.legacy.Resolve(r)
	if err != nil {
		h.writeResolveError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.LoginStatusResponse{Authenticated: true, User: claims})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, legacytoken.ExpiredCookie(h.cfg.SecureCookies))
	httputil.WriteJSON(w, http.StatusOK, models.LogoutResponse{Success: true})
}

func (h *Handler) HandleLogoutStatus(w http.ResponseWriter, r *http.Request) {
	_, err := h.legacy.Resolve(r)
	httputil.WriteJSON(w, http.StatusOK, models.LogoutStatusResponse{WasAuthenticated: err == nil})
}

// HandleCredentialsSignIn implements POST /api/auth/signin/credentials:
// credential sign-in that starts a provider session.
func (h *Handler) HandleCredentialsSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	session, err := h.auth.StartSession(ctx, user, service.ProviderCredentials, identity.DeviceLabel(r.UserAgent()))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start session",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, resolver.SessionCookie(session.ID, h.auth.SessionTTL(), h.cfg.SecureCookies))
	httputil.WriteJSON(w, http.StatusOK, models.SignInResponse{Success: true, User: user})
}

// HandleSession implements GET /api/auth/session. No session is not an
// error: the body is simply empty.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	claims, err := h.sessions.Resolve(r)
	if err != nil {
		if !resolver.IsAuthError(err) {
			h.writeResolveError(w, r, err)
			return
		}
		if errors.Is(err, resolver.ErrExpired) || errors.Is(err, resolver.ErrMalformed) {
			http.SetCookie(w, resolver.ExpiredSessionCookie(h.cfg.SecureCookies))
		}
		httputil.WriteJSON(w, http.StatusOK, models.SessionResponse{})
		return
	}
	expires := claims.ExpiresAt
	httputil.WriteJSON(w, http.StatusOK, models.SessionResponse{User: claims, Expires: &expires})
}

func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if cookie, err := r.Cookie(resolver.SessionCookieName); err == nil {
		if err := h.auth.EndSession(ctx, cookie.Value); err != nil {
			h.logger.ErrorContext(ctx, "failed to end session",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, err)
			return
		}
	}
	http.SetCookie(w, resolver.ExpiredSessionCookie(h.cfg.SecureCookies))
	httputil.WriteJSON(w, http.StatusOK, models.LogoutResponse{Success: true})
}

func (h *Handler) HandleProviders(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.providers.Providers())
}

// HandleProviderSignIn redirects the browser to the provider's consent page.
func (h *Handler) HandleProviderSignIn(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	target, err := h.providers.AuthCodeURL(r.Context(), providerID)
	if err != nil {
		h.writeFederationError(w, r, providerID, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleProviderCallback completes a federated sign-in and lands the
// browser on the app with a session cookie.
func (h *Handler) HandleProviderCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID := chi.URLParam(r, "provider")
	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		h.logger.WarnContext(ctx, "provider denied sign-in",
			"provider", providerID,
			"reason", reason,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign-in was cancelled"))
		return
	}

	profile, err := h.providers.Exchange(ctx, providerID, query.Get("code"), query.Get("state"))
	if err != nil {
		h.writeFederationError(w, r, providerID, err)
		return
	}

	user, err := h.auth.ProvisionFederated(ctx, providerID, profile)
	if err != nil {
		h.writeFederationError(w, r, providerID, err)
		return
	}

	session, err := h.auth.StartSession(ctx, user.Identity(), providerID, identity.DeviceLabel(r.UserAgent()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, resolver.SessionCookie(session.ID, h.auth.SessionTTL(), h.cfg.SecureCookies))
	http.Redirect(w, r, h.cfg.AppURL, http.StatusFound)
}

// authenticate decodes and validates a LoginRequest and verifies it. Every
// credential failure is answered with the same 401.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*models.Identity, bool) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger)
	if !ok {
		return nil, false
	}

	user, err := h.auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if service.IsCredentialFailure(err) {
			h.logger.WarnContext(ctx, "credential sign-in rejected",
				"reason", err.Error(),
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, MsgInvalidCredentials))
			return nil, false
		}
		h.logger.ErrorContext(ctx, "credential sign-in failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return nil, false
	}
	return user, true
}

func (h *Handler) writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	if resolver.IsAuthError(err) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, err.Error()))
		return
	}
	h.logger.ErrorContext(r.Context(), "failed to resolve caller",
		"error", err,
		"request_id", requestcontext.RequestID(r.Context()),
	)
	httputil.WriteError(w, err)
}

func (h *Handler) writeFederationError(w http.ResponseWriter, r *http.Request, providerID string, err error) {
	h.logger.WarnContext(r.Context(), "federated sign-in failed",
		"provider", providerID,
		"error", err,
		"request_id", requestcontext.RequestID(r.Context()),
	)
	switch {
	case errors.Is(err, service.ErrUnknownProvider):
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown sign-in provider"))
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrProfileIncomplete):
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign-in could not be completed"))
	case errors.Is(err, service.ErrProviderUnavailable):
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "sign-in provider unavailable"))
	default:
		httputil.WriteError(w, err)
	}
}
