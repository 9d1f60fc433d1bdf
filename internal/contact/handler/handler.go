package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/auth/resolver"
	"gatehouse/internal/contact/models"
	id "gatehouse/pkg/domain"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Service interface {
	Submit(ctx context.Context, req *models.SubmitRequest, sender *id.UserID) (*models.Contact, error)
	List(ctx context.Context, q models.Query) ([]*models.Contact, int, error)
}

// Routes carries the middleware each contact route runs behind.
type Routes struct {
	Submit []func(http.Handler) http.Handler
	Admin  []func(http.Handler) http.Handler
}

type Handler struct {
	contacts Service
	senders  resolver.SessionResolver
	logger   *slog.Logger
}

// New builds the handler. senders, when set, attaches the signed-in
// caller to a submission; resolution failures leave it anonymous.
func New(contacts Service, senders resolver.SessionResolver, logger *slog.Logger) *Handler {
	return &Handler{contacts: contacts, senders: senders, logger: logger}
}

func (h *Handler) Register(r chi.Router, routes Routes) {
	r.With(routes.Submit...).Post("/api/contact", h.HandleSubmit)
	r.With(routes.Admin...).Get("/api/contact", h.HandleList)
}

// HandleSubmit implements POST /api/contact. Origin and rate checks run
// in front of it; here the body is decoded, sanitized, validated and saved.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[models.SubmitRequest](w, r, h.logger)
	if !ok {
		return
	}

	req.Sanitize()
	if fields, err := req.ValidateFields(); err != nil {
		h.logger.WarnContext(ctx, "invalid contact submission",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteJSON(w, http.StatusBadRequest, models.SubmitResponse{
			Success: false,
			Message: "form validation failed",
			Errors:  fields,
		})
		return
	}

	contact, err := h.contacts.Submit(ctx, req, h.sender(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to save contact",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.SubmitResponse{
		Success: true,
		Message: "message received",
		Data:    &models.SubmitData{ID: contact.ID, CreatedAt: contact.CreatedAt},
	})
}

// HandleList implements GET /api/contact for administrators. Unknown status
// values are ignored rather than rejected.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := httputil.ParsePage(r, defaultPageSize, maxPageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	q := models.Query{Offset: page.Offset(), Limit: page.Limit}
	if status := models.Status(r.URL.Query().Get("status")); status.IsValid() {
		q.Status = status
	}

	contacts, total, err := h.contacts.List(ctx, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list contacts",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ListResponse{
		Success: true,
		Data:    contacts,
		Pagination: models.Pagination{
			Page:  page.Number,
			Limit: page.Limit,
			Total: total,
			Pages: page.TotalPages(total),
		},
	})
}

func (h *Handler) sender(r *http.Request) *id.UserID {
	if h.senders == nil {
		return nil
	}
	claims, err := h.senders.Resolve(r)
	if err != nil {
		return nil
	}
	return &claims.UserID
}
