package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/auth/legacytoken"
	authmodels "gatehouse/internal/auth/models"
	"gatehouse/internal/authz"
	"gatehouse/internal/profile/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	sortAsc  = "asc"
	sortDesc = "desc"
)

var sortKeys = map[string]bool{
	authmodels.SortByCreatedAt: true,
	authmodels.SortByName:      true,
	authmodels.SortByEmail:     true,
	authmodels.SortByRole:      true,
}

type Service interface {
	Get(ctx context.Context, userID id.UserID) (*models.Profile, error)
	Update(ctx context.Context, caller *authmodels.Claims, req *models.UpdateRequest) (*models.Profile, error)
	Delete(ctx context.Context, userID id.UserID) error
	List(ctx context.Context, q authmodels.UserQuery) ([]*models.Profile, int, error)
}

// Routes carries the middleware each profile route runs behind. Profile
// routes expect an authenticating guard in Protected; Mutate is appended
// for PUT and DELETE.
type Routes struct {
	Protected []func(http.Handler) http.Handler
	Mutate    []func(http.Handler) http.Handler
	Directory []func(http.Handler) http.Handler
}

type Handler struct {
	profiles      Service
	guard         *authz.Guard
	logger        *slog.Logger
	secureCookies bool
}

func New(profiles Service, guard *authz.Guard, logger *slog.Logger, secureCookies bool) *Handler {
	return &Handler{profiles: profiles, guard: guard, logger: logger, secureCookies: secureCookies}
}

func (h *Handler) Register(r chi.Router, routes Routes) {
	r.Group(func(r chi.Router) {
		r.Use(routes.Protected...)
		r.Get("/api/protected/profile", h.HandleGet)
		r.With(routes.Mutate...).Put("/api/protected/profile", h.HandleUpdate)
	})
	// Delete authorizes inline since the target comes from the query.
	r.With(routes.Mutate...).Delete("/api/protected/profile", h.HandleDelete)
	r.With(routes.Directory...).Get("/api/users", h.HandleList)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := authz.ClaimsFromContext(ctx)
	if caller == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	profile, err := h.profiles.Get(ctx, caller.UserID)
	if err != nil {
		h.logFailure(ctx, "failed to load profile", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ProfileResponse{
		Success:   true,
		Data:      profile,
		Timestamp: requestcontext.Now(ctx),
	})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := authz.ClaimsFromContext(ctx)
	if caller == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.profiles.Update(ctx, caller, req)
	if err != nil {
		h.logFailure(ctx, "failed to update profile", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.UpdateResponse{
		Success:   true,
		Message:   "profile updated",
		Data:      profile,
		Timestamp: requestcontext.Now(ctx),
	})
}

// HandleDelete removes the account named by ?userId=, defaulting to the
// caller. Only the owner or an administrator may delete it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	auth := h.guard.RequireAuthenticated(r)
	if !auth.Allowed() {
		h.guard.Deny(w, r, auth)
		return
	}

	target := auth.Claims.UserID
	if raw := strings.TrimSpace(r.URL.Query().Get("userId")); raw != "" {
		parsed, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
			return
		}
		target = parsed
	}

	d := h.guard.RequireOwnerOrAdmin(r, target)
	if !d.Allowed() {
		h.guard.Deny(w, r, d)
		return
	}

	if err := h.profiles.Delete(ctx, target); err != nil {
		h.logFailure(ctx, "failed to delete user", err)
		httputil.WriteError(w, err)
		return
	}

	if target == d.Claims.UserID {
		http.SetCookie(w, legacytoken.ExpiredCookie(h.secureCookies))
	}
	httputil.WriteJSON(w, http.StatusOK, models.DeleteResponse{
		Success:       true,
		Message:       "user deleted",
		DeletedUserID: target,
		Timestamp:     requestcontext.Now(ctx),
	})
}

// HandleList implements GET /api/users.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := httputil.ParsePage(r, defaultPageSize, maxPageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	q, filters, err := parseDirectoryQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q.Offset = page.Offset()
	q.Limit = page.Limit

	profiles, total, err := h.profiles.List(ctx, q)
	if err != nil {
		h.logFailure(ctx, "failed to list users", err)
		httputil.WriteError(w, err)
		return
	}

	pages := page.TotalPages(total)
	httputil.WriteJSON(w, http.StatusOK, models.DirectoryResponse{
		Success: true,
		Data:    profiles,
		Pagination: models.DirectoryPagination{
			Page:       page.Number,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: pages,
			HasNext:    page.Number < pages,
			HasPrev:    page.Number > 1,
		},
		Filters:   filters,
		Timestamp: requestcontext.Now(ctx),
	})
}

func parseDirectoryQuery(r *http.Request) (authmodels.UserQuery, models.DirectoryFilters, error) {
	values := r.URL.Query()
	filters := models.DirectoryFilters{
		Search:    strings.TrimSpace(values.Get("search")),
		Role:      strings.TrimSpace(values.Get("role")),
		SortBy:    strings.TrimSpace(values.Get("sortBy")),
		SortOrder: strings.ToLower(strings.TrimSpace(values.Get("sortOrder"))),
	}
	if filters.SortBy == "" {
		filters.SortBy = authmodels.SortByCreatedAt
	}
	if filters.SortOrder == "" {
		filters.SortOrder = sortAsc
	}

	q := authmodels.UserQuery{Search: filters.Search, SortBy: filters.SortBy, SortOrder: filters.SortOrder}
	if filters.Role != "" {
		role, err := authmodels.ParseRole(filters.Role)
		if err != nil {
			return q, filters, err
		}
		q.Role = role
	}
	if !sortKeys[filters.SortBy] {
		return q, filters, dErrors.New(dErrors.CodeValidation, "invalid sort field")
	}
	if filters.SortOrder != sortAsc && filters.SortOrder != sortDesc {
		return q, filters, dErrors.New(dErrors.CodeValidation, "invalid sort order")
	}
	return q, filters, nil
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
		return
	}
	h.logger.WarnContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
}
