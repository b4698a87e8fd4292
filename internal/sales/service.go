package sales

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/money"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/syncer"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	View(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	TaxRate            decimal.Decimal
	AllowNegativeStock bool
}

// Service rings up, refunds and voids sales.
type Service struct {
	repo     RepositoryPort
	taxRate  decimal.Decimal
	allowNeg bool
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, taxRate: cfg.TaxRate, allowNeg: cfg.AllowNegativeStock, now: time.Now}
}

// CreateSale snapshots each product, totals the sale and takes the sold
// quantities out of stock in one transaction.
func (s *Service) CreateSale(ctx context.Context, input CreateInput) (Sale, error) {
	const op = "sales.CreateSale"
	if strings.TrimSpace(input.WorkspaceID) == "" {
		return Sale{}, shared.Validation(op, nil, "workspace is required")
	}
	if len(input.Items) == 0 {
		return Sale{}, shared.Validation(op, ErrNoItems, "at least one item is required")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return Sale{}, shared.Validation(op, ErrInvalidQuantity, "quantity for %s must be positive", item.ProductID)
		}
		if item.Discount.IsNegative() {
			return Sale{}, shared.Validation(op, ErrInvalidDiscount, "discount for %s must be >= 0", item.ProductID)
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return Sale{}, shared.Validation(op, inventory.ErrInvalidPrice, "price for %s must be >= 0", item.ProductID)
		}
	}
	method := input.PaymentMethod
	if method == "" {
		method = "cash"
	}

	now := s.now()
	sale := Sale{
		Record:        docstore.NewRecord(input.WorkspaceID, now),
		UserID:        input.UserID,
		CustomerID:    input.CustomerID,
		PaymentMethod: method,
		Status:        StatusCompleted,
		Notes:         input.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items := make([]SaleItem, 0, len(input.Items))
		subtotal, discount := money.Zero, money.Zero
		for _, in := range input.Items {
			product, err := tx.GetProduct(ctx, in.ProductID)
			if err != nil {
				return err
			}
			if product.WorkspaceID != input.WorkspaceID {
				return shared.NotFound(op, inventory.ErrProductNotFound, "product %s not found", in.ProductID)
			}
			if !s.allowNeg && product.StockQuantity < in.Quantity {
				return shared.Validation(op, ErrInsufficientStock, "only %d of %s in stock", product.StockQuantity, product.Name)
			}
			price := product.SalePrice
			if in.UnitPrice != nil {
				price = *in.UnitPrice
			}
			gross := money.Line(in.Quantity, price)
			if in.Discount.GreaterThan(gross) {
				return shared.Validation(op, ErrInvalidDiscount, "discount for %s exceeds line amount", product.Name)
			}
			line := gross.Sub(money.Round(in.Discount))
			items = append(items, SaleItem{
				ID:          uuid.NewString(),
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    in.Quantity,
				UnitCost:    product.CostPrice,
				UnitPrice:   price,
				Discount:    money.Round(in.Discount),
				LineTotal:   line,
			})
			subtotal = subtotal.Add(line)
			discount = discount.Add(money.Round(in.Discount))

			if _, err := tx.ApplyMovement(ctx, inventory.MovementInput{
				WorkspaceID:   input.WorkspaceID,
				ProductID:     product.ID,
				Delta:         -in.Quantity,
				Reason:        inventory.ReasonSale,
				ReferenceType: "sale",
				ReferenceID:   sale.ID,
				UserID:        input.UserID,
			}, now); err != nil {
				return err
			}
		}
		sale.Items = items
		sale.Subtotal = subtotal
		sale.Discount = discount
		sale.Tax = money.Rate(subtotal, s.taxRate)
		sale.Total = subtotal.Add(sale.Tax)
		return tx.InsertSale(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// RefundSale returns every item to stock and marks the sale refunded.
func (s *Service) RefundSale(ctx context.Context, id, userID string) (Sale, error) {
	return s.close(ctx, "sales.RefundSale", id, userID, StatusRefunded)
}

// VoidSale reverses a sale rung up in error.
func (s *Service) VoidSale(ctx context.Context, id, userID string) (Sale, error) {
	return s.close(ctx, "sales.VoidSale", id, userID, StatusVoided)
}

func (s *Service) close(ctx context.Context, op, id, userID string, status Status) (Sale, error) {
	now := s.now()
	var out Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status != StatusCompleted {
			return shared.Conflict(op, ErrNotCompleted, "sale is %s", sale.Status)
		}
		for _, item := range sale.Items {
			if _, err := tx.ApplyMovement(ctx, inventory.MovementInput{
				WorkspaceID:   sale.WorkspaceID,
				ProductID:     item.ProductID,
				Delta:         item.Quantity,
				Reason:        inventory.ReasonReturn,
				ReferenceType: "sale",
				ReferenceID:   sale.ID,
				UserID:        userID,
				Notes:         string(status),
			}, now); err != nil {
				return err
			}
		}
		closedAt := now.UTC()
		sale.Status = status
		sale.ClosedAt = &closedAt
		sale.MarkDirty(now)
		out = sale
		return tx.SaveSale(ctx, sale)
	})
	if errors.Is(err, ErrSaleNotFound) {
		return Sale{}, shared.NotFound(op, err, "sale %s not found", id)
	}
	return out, err
}

// GetSale returns one sale.
func (s *Service) GetSale(ctx context.Context, id string) (Sale, error) {
	var out Sale
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.GetSale(ctx, id)
		return err
	})
	if errors.Is(err, ErrSaleNotFound) {
		return Sale{}, shared.NotFound("sales.GetSale", err, "sale %s not found", id)
	}
	return out, err
}

// ListSales returns sales newest first.
func (s *Service) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	var out []Sale
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListSales(ctx, filter)
		return err
	})
	return out, err
}

// RemoteWrites splits a stored sale into one sales row and one sale_items
// row per line, the shape the remote store keeps.
func RemoteWrites(raw json.RawMessage) ([]syncer.Write, error) {
	row, err := syncer.RowOf(raw)
	if err != nil {
		return nil, err
	}
	delete(row, "items")

	var sale Sale
	if err := json.Unmarshal(raw, &sale); err != nil {
		return nil, err
	}
	writes := make([]syncer.Write, 0, len(sale.Items)+1)
	writes = append(writes, syncer.Write{Collection: Collection, Row: row})
	for _, item := range sale.Items {
		writes = append(writes, syncer.Write{Collection: ItemsCollection, Row: map[string]any{
			"id":           item.ID,
			"sale_id":      sale.ID,
			"workspace_id": sale.WorkspaceID,
			"product_id":   item.ProductID,
			"product_name": item.ProductName,
			"quantity":     item.Quantity,
			"unit_cost":    item.UnitCost,
			"unit_price":   item.UnitPrice,
			"discount":     item.Discount,
			"line_total":   item.LineTotal,
			"created_at":   sale.CreatedAt,
		}})
	}
	return writes, nil
}
