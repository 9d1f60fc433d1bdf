package resolver

import (
	"errors"
	"net/http"

	"gatehouse/internal/auth/legacytoken"
	"gatehouse/internal/auth/models"
)

// LegacyCookieResolver reads the signed auth-token cookie.
type LegacyCookieResolver struct {
	issuer *legacytoken.Issuer
}

func NewLegacyCookieResolver(issuer *legacytoken.Issuer) *LegacyCookieResolver {
	return &LegacyCookieResolver{issuer: issuer}
}

func (l *LegacyCookieResolver) Resolve(r *http.Request) (*models.Claims, error) {
	cookie, err := r.Cookie(legacytoken.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoToken
	}

	claims, err := l.issuer.Resolve(r.Context(), cookie.Value)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, legacytoken.ErrExpired):
		return nil, ErrExpired
	default:
		return nil, ErrMalformed
	}
}
