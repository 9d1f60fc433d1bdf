// Package authz decides whether a resolved caller may proceed. The guard
// does no I/O of its own beyond the session resolver it is given.
package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/auth/resolver"
	id "gatehouse/pkg/domain"
	"gatehouse/pkg/requestcontext"
)

type Outcome int

const (
	Allow Outcome = iota
	DenyUnauthenticated
	DenyForbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// ErrForbidden is the reason carried by DenyForbidden decisions.
var ErrForbidden = errors.New("insufficient permissions")

// Decision is the result of one guard check. Claims are set whenever the
// caller was resolved, including on DenyForbidden.
type Decision struct {
	Outcome Outcome
	Claims  *models.Claims
	Reason  error
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

type Guard struct {
	resolver resolver.SessionResolver
	logger   *slog.Logger
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func NewGuard(res resolver.SessionResolver, opts ...Option) *Guard {
	g := &Guard{resolver: res}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// RequireAuthenticated resolves the caller. The resolver's error is the
// reason when it fails.
func (g *Guard) RequireAuthenticated(r *http.Request) Decision {
	claims, err := g.resolver.Resolve(r)
	if err != nil {
		return Decision{Outcome: DenyUnauthenticated, Reason: err}
	}
	return Decision{Outcome: Allow, Claims: claims}
}

// RequireRole allows callers whose role is in allowed.
func (g *Guard) RequireRole(r *http.Request, allowed ...models.Role) Decision {
	d := g.RequireAuthenticated(r)
	if !d.Allowed() {
		return d
	}
	if !d.Claims.HasRole(allowed...) {
		return Decision{Outcome: DenyForbidden, Claims: d.Claims, Reason: ErrForbidden}
	}
	return d
}

// RequireOwnerOrRole allows the owner of a resource, or any caller holding
// a privileged role.
func (g *Guard) RequireOwnerOrRole(r *http.Request, ownerID id.UserID, privileged ...models.Role) Decision {
	d := g.RequireAuthenticated(r)
	if !d.Allowed() {
		return d
	}
	if d.Claims.UserID == ownerID || d.Claims.HasRole(privileged...) {
		return d
	}
	return Decision{Outcome: DenyForbidden, Claims: d.Claims, Reason: ErrForbidden}
}

func (g *Guard) RequireAdmin(r *http.Request) Decision {
	return g.RequireRole(r, models.RoleAdmin)
}

func (g *Guard) RequireAdminOrModerator(r *http.Request) Decision {
	return g.RequireRole(r, models.RoleAdmin, models.RoleModerator)
}

func (g *Guard) RequireOwnerOrAdmin(r *http.Request, ownerID id.UserID) Decision {
	return g.RequireOwnerOrRole(r, ownerID, models.RoleAdmin)
}

func (g *Guard) logDenial(r *http.Request, d Decision) {
	ctx := r.Context()
	attrs := []any{
		"outcome", d.Outcome.String(),
		"path", r.URL.Path,
		"request_id", requestcontext.RequestID(ctx),
	}
	if d.Claims != nil {
		attrs = append(attrs, "user_id", d.Claims.UserID.String(), "role", d.Claims.Role.String())
	}
	if d.Reason != nil && !resolver.IsAuthError(d.Reason) && !errors.Is(d.Reason, ErrForbidden) {
		g.logger.ErrorContext(ctx, "authorization check failed", append(attrs, "error", d.Reason)...)
		return
	}
	if d.Reason != nil {
		attrs = append(attrs, "reason", d.Reason.Error())
	}
	g.logger.WarnContext(ctx, "access denied", attrs...)
}
