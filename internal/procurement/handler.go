package procurement

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler manages procurement endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	workspaceID string
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, workspaceID string) *Handler {
	return &Handler{logger: logger, service: service, workspaceID: workspaceID}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pos", h.handleListPOs)
	r.Post("/pos", h.createPO)
	r.Get("/pos/{id}", h.showPO)
	r.Post("/pos/{id}/send", h.sendPO)
	r.Post("/pos/{id}/confirm", h.confirmPO)
	r.Post("/pos/{id}/receive", h.receivePO)
	r.Post("/pos/{id}/cancel", h.cancelPO)
	r.Get("/low-stock", h.lowStock)
	r.Get("/backorders", h.backorders)
}

type poLineRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type createPORequest struct {
	SupplierID   string          `json:"supplier_id" validate:"required"`
	UserID       string          `json:"user_id"`
	Items        []poLineRequest `json:"items" validate:"required,min=1,dive"`
	ExpectedDate *time.Time      `json:"expected_date"`
	Notes        string          `json:"notes"`
}

type receiveRequest struct {
	UserID string `json:"user_id"`
	Lines  []struct {
		ItemID           string `json:"item_id" validate:"required"`
		QuantityReceived int    `json:"quantity_received"`
	} `json:"lines" validate:"required,min=1,dive"`
}

type actorRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) handleListPOs(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListPurchaseOrders(r.Context(), h.workspaceID, POStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, "list POs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	var req createPORequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreatePOInput{
		WorkspaceID:  h.workspaceID,
		SupplierID:   req.SupplierID,
		UserID:       req.UserID,
		ExpectedDate: req.ExpectedDate,
		Notes:        req.Notes,
	}
	for _, line := range req.Items {
		input.Items = append(input.Items, POLineInput{ProductID: line.ProductID, Quantity: line.Quantity, UnitCost: line.UnitCost})
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), input)
	if err != nil {
		h.fail(w, "create PO", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) showPO(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.GetPurchaseOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get PO", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) sendPO(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.SendPurchaseOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "send PO", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) confirmPO(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.ConfirmPurchaseOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "confirm PO", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) receivePO(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines := make([]ReceiptLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, ReceiptLine{ItemID: l.ItemID, QuantityReceived: l.QuantityReceived})
	}
	po, err := h.service.ReceiveItems(r.Context(), chi.URLParam(r, "id"), req.UserID, lines)
	if err != nil {
		h.fail(w, "receive PO", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) cancelPO(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if r.ContentLength > 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	po, err := h.service.CancelPurchaseOrder(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		h.fail(w, "cancel PO", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetLowStockProducts(r.Context(), h.workspaceID)
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) backorders(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetBackorders(r.Context(), h.workspaceID)
	if err != nil {
		h.fail(w, "backorders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error("procurement: "+action+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
