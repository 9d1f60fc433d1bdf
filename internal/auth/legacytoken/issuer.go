// Package legacytoken issues and verifies the legacy "auth-token" cookie
// value: an HS256 JWT carrying the caller's id, email, name and role.
package legacytoken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gatehouse/internal/auth/models"
	id "gatehouse/pkg/domain"
	"gatehouse/pkg/requestcontext"
)

const (
	CookieName = "auth-token"
	DefaultTTL = 24 * time.Hour
)

var (
	ErrMalformed = errors.New("invalid token")
	ErrExpired   = errors.New("token expired")
)

type tokenClaims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies legacy tokens. Time comes from
// requestcontext.Now so handlers and tests share one clock.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewIssuer(signingKey string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{signingKey: []byte(signingKey), ttl: ttl}
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a token for user that expires one TTL from now.
func (i *Issuer) Issue(ctx context.Context, user *models.Identity) (string, *models.Claims, error) {
	return i.IssueWithExpiry(user, requestcontext.Now(ctx).Add(i.ttl))
}

// IssueWithExpiry creates a token with an explicit expiry.
func (i *Issuer) IssueWithExpiry(user *models.Identity, expiresAt time.Time) (string, *models.Claims, error) {
	exp := jwt.NewNumericDate(expiresAt)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: exp,
		},
	})
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign legacy token: %w", err)
	}
	return signed, &models.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Image:     user.Image,
		Role:      user.Role,
		ExpiresAt: exp.Time,
		Source:    models.SourceLegacy,
	}, nil
}

// Resolve verifies raw and returns its claims. A bad signature, algorithm,
// payload or role yields ErrMalformed; a past expiry yields ErrExpired.
func (i *Issuer) Resolve(ctx context.Context, raw string) (*models.Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return i.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	userID, err := id.ParseUserID(claims.ID)
	if err != nil {
		return nil, ErrMalformed
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return nil, ErrMalformed
	}

	return &models.Claims{
		UserID:    userID,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
		Source:    models.SourceLegacy,
	}, nil
}

// Cookie builds the HttpOnly, SameSite=Strict cookie carrying token.
func (i *Issuer) Cookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(i.ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ExpiredCookie deletes the legacy cookie.
func ExpiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}
