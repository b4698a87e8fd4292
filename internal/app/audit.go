package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// AuditHandler serves the audit trail of one entity.
type AuditHandler struct {
	logger *slog.Logger
	audit  *shared.AuditLogger
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(logger *slog.Logger, audit *shared.AuditLogger) *AuditHandler {
	return &AuditHandler{logger: logger, audit: audit}
}

// MountRoutes registers audit routes.
func (h *AuditHandler) MountRoutes(r chi.Router) {
	r.Get("/{entity}/{id}", h.timeline)
}

func (h *AuditHandler) timeline(w http.ResponseWriter, r *http.Request) {
	logs, err := h.audit.List(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if logs == nil {
		logs = []shared.AuditLog{}
	}
	httpx.JSON(w, http.StatusOK, logs)
}
