package giftcards

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler exposes gift card operations.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	workspaceID string
}

// NewHandler constructs the gift card handler.
func NewHandler(logger *slog.Logger, service *Service, workspaceID string) *Handler {
	return &Handler{logger: logger, service: service, workspaceID: workspaceID}
}

// MountRoutes registers gift card routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.issue)
	r.Post("/bulk", h.bulk)
	r.Get("/{number}", h.balance)
	r.Post("/{number}/redeem", h.redeem)
	r.Post("/{number}/reload", h.reload)
	r.Post("/{number}/deactivate", h.deactivate)
}

type issueRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	CustomerID string          `json:"customer_id"`
	IssuedBy   string          `json:"issued_by"`
	Notes      string          `json:"notes"`
}

type bulkRequest struct {
	Count    int             `json:"count" validate:"gt=0,lte=1000"`
	Amount   decimal.Decimal `json:"amount"`
	IssuedBy string          `json:"issued_by"`
}

type amountRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	ActorID string          `json:"actor_id"`
}

var outcomeStatus = map[Outcome]int{
	OutcomeRedeemed:            http.StatusOK,
	OutcomeNotFound:            http.StatusNotFound,
	OutcomeInactive:            http.StatusConflict,
	OutcomeInsufficientBalance: http.StatusConflict,
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.ListGiftCards(r.Context(), h.workspaceID, httpx.QueryBool(r, "active", false))
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cards)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	card, err := h.service.IssueGiftCard(r.Context(), IssueInput{
		WorkspaceID: h.workspaceID,
		Amount:      req.Amount,
		CustomerID:  req.CustomerID,
		IssuedBy:    req.IssuedBy,
		Notes:       req.Notes,
	})
	if err != nil {
		h.fail(w, "issue", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, card)
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cards, err := h.service.BulkGenerateGiftCards(r.Context(), BulkInput{
		WorkspaceID: h.workspaceID,
		Count:       req.Count,
		Amount:      req.Amount,
		IssuedBy:    req.IssuedBy,
	})
	if err != nil {
		h.logger.Warn("giftcards: bulk generation stopped", slog.Int("issued", len(cards)), slog.Any("error", err))
		h.fail(w, "bulk generate", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cards)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.CheckBalance(r.Context(), h.workspaceID, chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, "check balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.RedeemGiftCard(r.Context(), h.workspaceID, chi.URLParam(r, "number"), req.Amount, req.ActorID)
	if err != nil {
		h.fail(w, "redeem", err)
		return
	}
	httpx.JSON(w, outcomeStatus[result.Outcome], result)
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	card, err := h.service.ReloadGiftCard(r.Context(), h.workspaceID, chi.URLParam(r, "number"), req.Amount)
	if err != nil {
		h.fail(w, "reload", err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.DeactivateGiftCard(r.Context(), h.workspaceID, chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, "deactivate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error("giftcards: "+action+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
