package procurement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/money"
	"github.com/odyssey-erp/odyssey-pos/internal/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/suppliers"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	View(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// SupplierPort resolves suppliers for ordering and reorder suggestions.
type SupplierPort interface {
	GetSupplier(ctx context.Context, id string) (suppliers.Supplier, error)
	GetPreferredSupplier(ctx context.Context, productID string) (suppliers.ProductSupplier, suppliers.Supplier, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates purchase order workflows.
type Service struct {
	repo      RepositoryPort
	suppliers SupplierPort
	audit     AuditPort
	taxRate   decimal.Decimal
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, suppliers SupplierPort, audit AuditPort, taxRate decimal.Decimal) *Service {
	return &Service{repo: repo, suppliers: suppliers, audit: audit, taxRate: taxRate, now: time.Now}
}

func notFound(op, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return shared.NotFound(op, err, "purchase order %s not found", id)
	}
	return err
}

// CreatePurchaseOrder stores a draft PO. Shipping is always zero at creation.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	const op = "procurement.CreatePurchaseOrder"
	if strings.TrimSpace(input.WorkspaceID) == "" {
		return PurchaseOrder{}, shared.Validation(op, ErrValidation, "workspace is required")
	}
	if len(input.Items) == 0 {
		return PurchaseOrder{}, shared.Validation(op, ErrValidation, "at least one item is required")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return PurchaseOrder{}, shared.Validation(op, ErrValidation, "quantity for %s must be positive", item.ProductID)
		}
		if item.UnitCost.IsNegative() {
			return PurchaseOrder{}, shared.Validation(op, inventory.ErrInvalidPrice, "unit cost for %s must be >= 0", item.ProductID)
		}
	}
	supplier, err := s.suppliers.GetSupplier(ctx, input.SupplierID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if supplier.WorkspaceID != input.WorkspaceID {
		return PurchaseOrder{}, shared.NotFound(op, suppliers.ErrSupplierNotFound, "supplier %s not found", input.SupplierID)
	}

	var out PurchaseOrder
	err = numbering.WithRetry(ctx, numbering.DefaultAttempts, func(ctx context.Context) error {
		now := s.now()
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			po := PurchaseOrder{
				Record:       docstore.NewRecord(input.WorkspaceID, now),
				SupplierID:   supplier.ID,
				UserID:       input.UserID,
				Status:       POStatusDraft,
				Shipping:     money.Zero,
				ExpectedDate: input.ExpectedDate,
				Notes:        input.Notes,
			}
			lines := make([]decimal.Decimal, 0, len(input.Items))
			for _, in := range input.Items {
				product, err := tx.GetProduct(ctx, in.ProductID)
				if err != nil {
					return err
				}
				if product.WorkspaceID != input.WorkspaceID {
					return shared.NotFound(op, inventory.ErrProductNotFound, "product %s not found", in.ProductID)
				}
				line := money.Line(in.Quantity, in.UnitCost)
				po.Items = append(po.Items, POLine{
					ID:              uuid.NewString(),
					ProductID:       product.ID,
					ProductName:     product.Name,
					QuantityOrdered: in.Quantity,
					UnitCost:        in.UnitCost,
					LineTotal:       line,
				})
				lines = append(lines, line)
			}
			po.Subtotal = money.Sum(lines...)
			po.Tax = money.Rate(po.Subtotal, s.taxRate)
			po.Total = po.Subtotal.Add(po.Tax).Add(po.Shipping)

			number, err := tx.NextNumber(ctx, input.WorkspaceID)
			if err != nil {
				return err
			}
			po.Number = number
			out = po
			return tx.InsertPO(ctx, po)
		})
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return out, nil
}

// SendPurchaseOrder marks a draft as sent to the supplier.
func (s *Service) SendPurchaseOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	return s.transition(ctx, "procurement.SendPurchaseOrder", id, POStatusDraft, func(po *PurchaseOrder, now time.Time) {
		at := now.UTC()
		po.Status = POStatusSent
		po.SentAt = &at
	})
}

// ConfirmPurchaseOrder records the supplier's acknowledgement.
func (s *Service) ConfirmPurchaseOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	return s.transition(ctx, "procurement.ConfirmPurchaseOrder", id, POStatusSent, func(po *PurchaseOrder, now time.Time) {
		at := now.UTC()
		po.Status = POStatusConfirmed
		po.ConfirmedAt = &at
	})
}

func (s *Service) transition(ctx context.Context, op, id string, from POStatus, fn func(*PurchaseOrder, time.Time)) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != from {
			return shared.Conflict(op, ErrInvalidState, "purchase order %s is %s, expected %s", po.Number, po.Status, from)
		}
		now := s.now()
		fn(&po, now)
		po.MarkDirty(now)
		out = po
		return tx.SavePO(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, notFound(op, id, err)
	}
	return out, nil
}

// ReceiveItems books a delivery. Each line raises stock by the clamped
// quantity and overwrites the product's cost with the line's unit cost. The
// order becomes received once every line is complete, confirmed otherwise.
func (s *Service) ReceiveItems(ctx context.Context, id, userID string, lines []ReceiptLine) (PurchaseOrder, error) {
	const op = "procurement.ReceiveItems"
	if len(lines) == 0 {
		return PurchaseOrder{}, shared.Validation(op, ErrValidation, "at least one line is required")
	}
	for _, l := range lines {
		if l.QuantityReceived <= 0 {
			return PurchaseOrder{}, shared.Validation(op, ErrValidation, "received quantity for item %s must be positive", l.ItemID)
		}
	}

	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch po.Status {
		case POStatusSent, POStatusConfirmed:
		default:
			return shared.Conflict(op, ErrInvalidState, "cannot receive items on %s purchase order %s", po.Status, po.Number)
		}
		now := s.now()
		index := make(map[string]int, len(po.Items))
		for i, item := range po.Items {
			index[item.ID] = i
		}
		for _, l := range lines {
			i, ok := index[l.ItemID]
			if !ok {
				return shared.NotFound(op, ErrItemNotFound, "item %s not on purchase order %s", l.ItemID, po.Number)
			}
			item := &po.Items[i]
			qty := l.QuantityReceived
			if pending := item.Pending(); qty > pending {
				qty = pending
			}
			if qty == 0 {
				continue
			}
			cost := item.UnitCost
			if _, err := tx.ApplyMovement(ctx, inventory.MovementInput{
				WorkspaceID:   po.WorkspaceID,
				ProductID:     item.ProductID,
				Delta:         qty,
				Reason:        inventory.ReasonRestock,
				ReferenceType: "purchase_order",
				ReferenceID:   po.ID,
				Notes:         "received on " + po.Number,
				UserID:        userID,
				UnitCost:      &cost,
			}, now); err != nil {
				return err
			}
			item.QuantityReceived += qty
		}
		if po.FullyReceived() {
			at := now.UTC()
			po.Status = POStatusReceived
			po.ActualDeliveryDate = &at
		} else {
			po.Status = POStatusConfirmed
			if po.ConfirmedAt == nil {
				at := now.UTC()
				po.ConfirmedAt = &at
			}
		}
		po.MarkDirty(now)
		out = po
		return tx.SavePO(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, notFound(op, id, err)
	}
	s.recordAudit(ctx, userID, "purchase_order:receive", out)
	return out, nil
}

// CancelPurchaseOrder flips the status only. Stock from earlier partial
// receipts stays on hand.
func (s *Service) CancelPurchaseOrder(ctx context.Context, id, userID string) (PurchaseOrder, error) {
	const op = "procurement.CancelPurchaseOrder"
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status == POStatusReceived || po.Status == POStatusCancelled {
			return shared.Conflict(op, ErrInvalidState, "purchase order %s is already %s", po.Number, po.Status)
		}
		now := s.now()
		at := now.UTC()
		po.Status = POStatusCancelled
		po.CancelledAt = &at
		po.MarkDirty(now)
		out = po
		return tx.SavePO(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, notFound(op, id, err)
	}
	s.recordAudit(ctx, userID, "purchase_order:cancel", out)
	return out, nil
}

// GetPurchaseOrder returns a live purchase order.
func (s *Service) GetPurchaseOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPO(ctx, id)
		out = po
		return err
	})
	if err != nil {
		return PurchaseOrder{}, notFound("procurement.GetPurchaseOrder", id, err)
	}
	return out, nil
}

// ListPurchaseOrders returns orders newest first, optionally by status.
func (s *Service) ListPurchaseOrders(ctx context.Context, workspaceID string, status POStatus) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var statuses []POStatus
		if status != "" {
			statuses = append(statuses, status)
		}
		orders, err := tx.ListPOs(ctx, workspaceID, statuses...)
		out = orders
		return err
	})
	return out, err
}

// GetLowStockProducts lists products at or below their minimum level with a
// suggested reorder quantity of max(2*min - stock, supplier MOQ or 1).
func (s *Service) GetLowStockProducts(ctx context.Context, workspaceID string) ([]LowStockItem, error) {
	var products []inventory.Product
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		all, err := tx.ListProducts(ctx, workspaceID)
		if err != nil {
			return err
		}
		for _, p := range all {
			if p.StockQuantity <= p.MinStockLevel {
				products = append(products, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]LowStockItem, 0, len(products))
	for _, p := range products {
		item := LowStockItem{Product: p}
		floor := 1
		link, sup, err := s.suppliers.GetPreferredSupplier(ctx, p.ID)
		switch {
		case err == nil:
			item.Link = &link
			item.Supplier = &sup
			if link.MinOrderQuantity > 0 {
				floor = link.MinOrderQuantity
			}
		case errors.Is(err, shared.ErrNotFound):
		default:
			return nil, err
		}
		item.SuggestedQuantity = max(p.MinStockLevel*2-p.StockQuantity, floor)
		out = append(out, item)
	}
	return out, nil
}

// GetBackorders lists lines on sent or confirmed orders still awaiting
// delivery.
func (s *Service) GetBackorders(ctx context.Context, workspaceID string) ([]Backorder, error) {
	var out []Backorder
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		orders, err := tx.ListPOs(ctx, workspaceID, POStatusSent, POStatusConfirmed)
		if err != nil {
			return err
		}
		for _, po := range orders {
			for _, item := range po.Items {
				if item.Pending() == 0 {
					continue
				}
				out = append(out, Backorder{
					OrderID:     po.ID,
					Number:      po.Number,
					SupplierID:  po.SupplierID,
					Status:      po.Status,
					ItemID:      item.ID,
					ProductID:   item.ProductID,
					ProductName: item.ProductName,
					Ordered:     item.QuantityOrdered,
					Received:    item.QuantityReceived,
					Pending:     item.Pending(),
				})
			}
		}
		return nil
	})
	return out, err
}

// PurchaseSummary counts a supplier's live orders and sums their totals.
func (s *Service) PurchaseSummary(ctx context.Context, supplierID string) (suppliers.PurchaseSummary, error) {
	summary := suppliers.PurchaseSummary{TotalSpend: money.Zero}
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		orders, err := tx.ListSupplierPOs(ctx, supplierID)
		if err != nil {
			return err
		}
		summary.OrderCount = len(orders)
		for _, po := range orders {
			summary.TotalSpend = summary.TotalSpend.Add(po.Total)
		}
		return nil
	})
	return summary, err
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, po PurchaseOrder) {
	if s.audit == nil {
		return
	}
	received := 0
	for _, item := range po.Items {
		received += item.QuantityReceived
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		WorkspaceID: po.WorkspaceID,
		ActorID:     actor,
		Action:      action,
		Entity:      "purchase_order",
		EntityID:    po.ID,
		Meta: map[string]any{
			"number":   po.Number,
			"status":   po.Status,
			"received": received,
		},
	})
}
