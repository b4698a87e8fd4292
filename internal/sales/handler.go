package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler exposes sales over HTTP.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	workspaceID string
}

// NewHandler constructs the sales handler. idem may be nil.
func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore, workspaceID string) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idem, workspaceID: workspaceID}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/refund", h.refund)
	r.Post("/{id}/void", h.void)
}

type itemRequest struct {
	ProductID string           `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal  `json:"discount"`
}

type createRequest struct {
	UserID        string        `json:"user_id"`
	CustomerID    string        `json:"customer_id"`
	Items         []itemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string        `json:"payment_method"`
	Notes         string        `json:"notes"`
}

type closeRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "sales"); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	items := make([]ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice, Discount: it.Discount})
	}
	sale, err := h.service.CreateSale(r.Context(), CreateInput{
		WorkspaceID:   h.workspaceID,
		UserID:        req.UserID,
		CustomerID:    req.CustomerID,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		if key != "" && h.idempotency != nil {
			_ = h.idempotency.Delete(r.Context(), key, "sales")
		}
		h.fail(w, "create sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	from, err := httpx.QueryTime(r, "from", false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryTime(r, "to", true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sales, err := h.service.ListSales(r.Context(), ListFilter{WorkspaceID: h.workspaceID, From: from, To: to})
	if err != nil {
		h.fail(w, "list sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sale, err := h.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	_ = httpx.DecodeJSON(r, &req)
	sale, err := h.service.RefundSale(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		h.fail(w, "refund sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	_ = httpx.DecodeJSON(r, &req)
	sale, err := h.service.VoidSale(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		h.fail(w, "void sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error("sales: "+action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
