package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	workspaceID string
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, workspaceID string) *Handler {
	return &Handler{logger: logger, service: service, workspaceID: workspaceID}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.upsertProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/products/{id}/adjustments", h.adjust)
	r.Get("/products/{id}/movements", h.movements)
	r.Get("/products/{id}/stock-card", h.stockCard)
	r.Get("/reconcile", h.reconcile)
}

type productRequest struct {
	ID            string          `json:"id"`
	Name          string          `json:"name" validate:"required"`
	Barcode       string          `json:"barcode"`
	SKU           string          `json:"sku"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	MinStockLevel int             `json:"min_stock_level" validate:"gte=0"`
}

type adjustmentRequest struct {
	Delta            int    `json:"delta" validate:"required"`
	Reason           Reason `json:"reason" validate:"required,oneof=waste correction"`
	AdjustmentReason string `json:"adjustment_reason"`
	Notes            string `json:"notes"`
	UserID           string `json:"user_id"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), h.workspaceID)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) upsertProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.UpsertProduct(r.Context(), ProductInput{
		ID:            req.ID,
		WorkspaceID:   h.workspaceID,
		Name:          req.Name,
		Barcode:       req.Barcode,
		SKU:           req.SKU,
		CostPrice:     req.CostPrice,
		SalePrice:     req.SalePrice,
		StockQuantity: req.StockQuantity,
		MinStockLevel: req.MinStockLevel,
	})
	if err != nil {
		h.fail(w, "upsert product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	movement, err := h.service.AdjustStock(r.Context(), AdjustmentInput{
		WorkspaceID:      h.workspaceID,
		ProductID:        chi.URLParam(r, "id"),
		Delta:            req.Delta,
		Reason:           req.Reason,
		AdjustmentReason: req.AdjustmentReason,
		Notes:            req.Notes,
		UserID:           req.UserID,
	})
	if err != nil {
		h.fail(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) filter(r *http.Request) (StockCardFilter, error) {
	from, err := httpx.QueryTime(r, "from", false)
	if err != nil {
		return StockCardFilter{}, err
	}
	to, err := httpx.QueryTime(r, "to", true)
	if err != nil {
		return StockCardFilter{}, err
	}
	return StockCardFilter{ProductID: chi.URLParam(r, "id"), From: from, To: to}, nil
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movements, err := h.service.GetMovements(r.Context(), filter)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.GetStockCard(r.Context(), filter)
	if err != nil {
		h.fail(w, "get stock card", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	mismatches, err := h.service.Reconcile(r.Context(), h.workspaceID)
	if err != nil {
		h.fail(w, "reconcile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mismatches": mismatches})
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error("inventory: "+action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
