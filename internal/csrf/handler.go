package csrf

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/identity"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
)

type TokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// Handler issues tokens bound to the caller's session fingerprint.
type Handler struct {
	manager  *Manager
	resolver identity.Resolver
	logger   *slog.Logger
}

func NewHandler(manager *Manager, resolver identity.Resolver, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/csrf", h.HandleToken)
}

func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.manager.GenerateToken(r.Context(), h.resolver.SessionFingerprint(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue csrf token", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue csrf token"))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{CSRFToken: token})
}
