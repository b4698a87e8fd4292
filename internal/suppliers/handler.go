package suppliers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type Handler struct {
	logger      *slog.Logger
	service     *Service
	workspaceID string
}

func NewHandler(logger *slog.Logger, service *Service, workspaceID string) *Handler {
	return &Handler{logger: logger, service: service, workspaceID: workspaceID}
}

type supplierRequest struct {
	Name         string       `json:"name" validate:"required"`
	ContactName  string       `json:"contact_name"`
	Email        string       `json:"email" validate:"omitempty,email"`
	Phone        string       `json:"phone"`
	Address      string       `json:"address"`
	PaymentTerms PaymentTerms `json:"payment_terms" validate:"omitempty,oneof=cash net15 net30 net60"`
	LeadTimeDays int          `json:"lead_time_days" validate:"gte=0"`
	Notes        string       `json:"notes"`
}

func (req supplierRequest) input(workspaceID string) SupplierInput {
	return SupplierInput{
		WorkspaceID:  workspaceID,
		Name:         req.Name,
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		PaymentTerms: req.PaymentTerms,
		LeadTimeDays: req.LeadTimeDays,
		Notes:        req.Notes,
	}
}

type linkRequest struct {
	ProductID        string          `json:"product_id" validate:"required"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	IsPreferred      bool            `json:"is_preferred"`
	MinOrderQuantity int             `json:"min_order_quantity" validate:"gte=0"`
	SupplierSKU      string          `json:"supplier_sku"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context(), h.workspaceID, httpx.QueryBool(r, "active", false))
	if err != nil {
		h.fail(w, "list suppliers failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	sup, err := h.service.GetSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sup, err := h.service.CreateSupplier(r.Context(), req.input(h.workspaceID))
	if err != nil {
		h.fail(w, "create supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sup)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sup, err := h.service.UpdateSupplier(r.Context(), chi.URLParam(r, "id"), req.input(h.workspaceID))
	if err != nil {
		h.fail(w, "update supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	sup, err := h.service.DeactivateSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "deactivate supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	sup, err := h.service.ActivateSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "activate supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSupplier(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete supplier failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	links, err := h.service.GetSupplierProducts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "list supplier products failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, links)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetSupplierStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "supplier stats failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	link, err := h.service.LinkProduct(r.Context(), LinkInput{
		WorkspaceID:      h.workspaceID,
		ProductID:        req.ProductID,
		SupplierID:       chi.URLParam(r, "id"),
		CostPrice:        req.CostPrice,
		IsPreferred:      req.IsPreferred,
		MinOrderQuantity: req.MinOrderQuantity,
		SupplierSKU:      req.SupplierSKU,
	})
	if err != nil {
		h.fail(w, "link product failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, link)
}

func (h *Handler) Unlink(w http.ResponseWriter, r *http.Request) {
	if err := h.service.UnlinkProduct(r.Context(), chi.URLParam(r, "productID"), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "unlink product failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ProductSuppliers(w http.ResponseWriter, r *http.Request) {
	links, err := h.service.GetProductSuppliers(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, "list product suppliers failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, links)
}

func (h *Handler) Preferred(w http.ResponseWriter, r *http.Request) {
	link, sup, err := h.service.GetPreferredSupplier(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, "preferred supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"link": link, "supplier": sup})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error(msg, "error", err)
	}
	httpx.RespondError(w, err)
}
