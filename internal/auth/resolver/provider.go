package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/sentinel"
	"gatehouse/pkg/requestcontext"
)

const SessionCookieName = "gatehouse.session-token"

// SessionLookup is the part of the session store the resolver needs.
type SessionLookup interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// ProviderSessionResolver reads the opaque session cookie and loads the
// session. Expired sessions are deleted on sight.
type ProviderSessionResolver struct {
	sessions SessionLookup
}

func NewProviderSessionResolver(sessions SessionLookup) *ProviderSessionResolver {
	return &ProviderSessionResolver{sessions: sessions}
}

func (p *ProviderSessionResolver) Resolve(r *http.Request) (*models.Claims, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoToken
	}

	ctx := r.Context()
	session, err := p.sessions.FindByID(ctx, cookie.Value)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if session.IsExpired(requestcontext.Now(ctx)) {
		if err := p.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, ErrExpired
	}
	return session.Claims(), nil
}

// SessionCookie carries a provider session id.
func SessionCookie(sessionID string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func ExpiredSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
