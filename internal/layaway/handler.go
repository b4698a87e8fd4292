package layaway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler exposes layaway operations over HTTP.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	workspaceID string
}

// NewHandler constructs the layaway handler.
func NewHandler(logger *slog.Logger, service *Service, workspaceID string) *Handler {
	return &Handler{logger: logger, service: service, workspaceID: workspaceID}
}

// MountRoutes registers layaway routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/stats", h.stats)
	r.Get("/{id}", h.get)
	r.Post("/{id}/payments", h.pay)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/cancel", h.cancel)
}

type itemRequest struct {
	ProductID string           `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type createRequest struct {
	CustomerID           string           `json:"customer_id" validate:"required"`
	UserID               string           `json:"user_id"`
	Items                []itemRequest    `json:"items" validate:"required,min=1,dive"`
	DepositAmount        decimal.Decimal  `json:"deposit_amount"`
	DepositPercentage    *decimal.Decimal `json:"deposit_percentage"`
	RestockingFeePercent *decimal.Decimal `json:"restocking_fee_percent"`
	PaymentMethod        string           `json:"payment_method"`
	Notes                string           `json:"notes"`
}

type paymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
}

type cancelRequest struct {
	ApplyRestockingFee bool   `json:"apply_restocking_fee"`
	UserID             string `json:"user_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items := make([]ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	order, err := h.service.CreateLayawayOrder(r.Context(), CreateInput{
		WorkspaceID:          h.workspaceID,
		CustomerID:           req.CustomerID,
		UserID:               req.UserID,
		Items:                items,
		DepositAmount:        req.DepositAmount,
		DepositPercentage:    req.DepositPercentage,
		RestockingFeePercent: req.RestockingFeePercent,
		PaymentMethod:        req.PaymentMethod,
		Notes:                req.Notes,
	})
	if err != nil {
		h.fail(w, "create layaway", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetLayawayOrders(r.Context(), h.workspaceID, Status(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, "list layaways", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetLayawayStats(r.Context(), h.workspaceID)
	if err != nil {
		h.fail(w, "layaway stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetLayawayOrderByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get layaway", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.RecordPayment(r.Context(), PaymentInput{
		OrderID:       chi.URLParam(r, "id"),
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.CompleteLayaway(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "complete layaway", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.CancelLayaway(r.Context(), chi.URLParam(r, "id"), req.ApplyRestockingFee, req.UserID)
	if err != nil {
		h.fail(w, "cancel layaway", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error("layaway: "+action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
