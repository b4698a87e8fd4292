package syncer

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
)

// Handler exposes the engine to the UI shell.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/status", h.status)
	r.Post("/run", h.run)
	r.Post("/online", h.setOnline)
}

type onlineRequest struct {
	Online *bool `json:"online" validate:"required"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.engine.Status())
}

// run answers 200 with the cycle event even when the cycle failed; sync
// failures are reported as status, not as request errors.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	ev, err := h.engine.SyncNow(r.Context(), TriggerManual)
	if errors.Is(err, ErrSyncInProgress) {
		httpx.Problem(w, http.StatusConflict, "Sync in progress", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, ev)
}

func (h *Handler) setOnline(w http.ResponseWriter, r *http.Request) {
	var req onlineRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.engine.SetOnline(*req.Online)
	httpx.JSON(w, http.StatusOK, h.engine.Status())
}
