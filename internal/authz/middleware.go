package authz

import (
	"context"
	"errors"
	"net/http"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/auth/resolver"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
)

type claimsKey struct{}

func WithClaims(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by a guard middleware, or nil.
func ClaimsFromContext(ctx context.Context) *models.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*models.Claims)
	return claims
}

// Authenticated admits any resolved caller.
func (g *Guard) Authenticated() func(http.Handler) http.Handler {
	return g.middleware(g.RequireAuthenticated)
}

// Role admits callers holding one of roles.
func (g *Guard) Role(roles ...models.Role) func(http.Handler) http.Handler {
	return g.middleware(func(r *http.Request) Decision {
		return g.RequireRole(r, roles...)
	})
}

func (g *Guard) AdminOnly() func(http.Handler) http.Handler {
	return g.Role(models.RoleAdmin)
}

func (g *Guard) middleware(check func(*http.Request) Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := check(r)
			if !d.Allowed() {
				g.logDenial(r, d)
				WriteDenial(w, d)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), d.Claims)))
		})
	}
}

// Deny logs and writes a denial for handlers that run checks inline.
func (g *Guard) Deny(w http.ResponseWriter, r *http.Request, d Decision) {
	g.logDenial(r, d)
	WriteDenial(w, d)
}

// WriteDenial writes 401 or 403 with the reason message. A reason that is
// not a resolver outcome is an infrastructure failure and gets a 500.
func WriteDenial(w http.ResponseWriter, d Decision) {
	switch d.Outcome {
	case Allow:
		return
	case DenyForbidden:
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, reasonMessage(d.Reason, ErrForbidden)))
	default:
		if d.Reason != nil && !resolver.IsAuthError(d.Reason) {
			httputil.WriteError(w, dErrors.Wrap(d.Reason, dErrors.CodeInternal, "failed to resolve caller"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, reasonMessage(d.Reason, resolver.ErrNoToken)))
	}
}

func reasonMessage(reason, fallback error) string {
	switch {
	case reason == nil:
		return fallback.Error()
	case errors.Is(reason, resolver.ErrNoToken):
		return resolver.ErrNoToken.Error()
	case errors.Is(reason, resolver.ErrExpired):
		return resolver.ErrExpired.Error()
	case errors.Is(reason, resolver.ErrMalformed):
		return resolver.ErrMalformed.Error()
	default:
		return reason.Error()
	}
}
