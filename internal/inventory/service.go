package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	View(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// UpsertProduct creates a product or edits its catalog fields. The initial
// stock quantity of a new product becomes its opening quantity; stock of an
// existing product is left to ApplyMovement.
func (s *Service) UpsertProduct(ctx context.Context, input ProductInput) (Product, error) {
	const op = "inventory.UpsertProduct"
	if strings.TrimSpace(input.WorkspaceID) == "" {
		return Product{}, shared.Validation(op, nil, "workspace is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return Product{}, shared.Validation(op, nil, "product name is required")
	}
	if input.CostPrice.IsNegative() || input.SalePrice.IsNegative() {
		return Product{}, shared.Validation(op, ErrInvalidPrice, "prices must be >= 0")
	}
	if input.MinStockLevel < 0 {
		return Product{}, shared.Validation(op, nil, "minimum stock level must be >= 0")
	}

	now := s.now()
	var out Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.ID != "" {
			existing, err := tx.GetProductForUpdate(ctx, input.ID)
			if err == nil {
				existing.Name = input.Name
				existing.Barcode = input.Barcode
				existing.SKU = input.SKU
				existing.CostPrice = input.CostPrice
				existing.SalePrice = input.SalePrice
				existing.MinStockLevel = input.MinStockLevel
				existing.MarkDirty(now)
				out = existing
				return tx.SaveProduct(ctx, existing)
			}
			if !errors.Is(err, ErrProductNotFound) {
				return err
			}
		}
		product := Product{
			Record:          docstore.NewRecord(input.WorkspaceID, now),
			Name:            input.Name,
			Barcode:         input.Barcode,
			SKU:             input.SKU,
			CostPrice:       input.CostPrice,
			SalePrice:       input.SalePrice,
			StockQuantity:   input.StockQuantity,
			MinStockLevel:   input.MinStockLevel,
			OpeningQuantity: input.StockQuantity,
		}
		if input.ID != "" {
			product.ID = input.ID
		}
		out = product
		return tx.InsertProduct(ctx, product)
	})
	if errors.Is(err, docstore.ErrDuplicate) {
		return Product{}, shared.Conflict(op, err, "product %s was deleted", input.ID)
	}
	return out, err
}

// GetProduct returns a live product.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	var out Product
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.GetProduct(ctx, id)
		return err
	})
	if errors.Is(err, ErrProductNotFound) {
		return Product{}, shared.NotFound("inventory.GetProduct", err, "product %s not found", id)
	}
	return out, err
}

// ListProducts returns the workspace's live products.
func (s *Service) ListProducts(ctx context.Context, workspaceID string) ([]Product, error) {
	var out []Product
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListProducts(ctx, workspaceID)
		return err
	})
	return out, err
}

// AdjustStock records a manual waste or correction.
func (s *Service) AdjustStock(ctx context.Context, input AdjustmentInput) (StockMovement, error) {
	const op = "inventory.AdjustStock"
	switch input.Reason {
	case ReasonWaste:
		if input.Delta >= 0 {
			return StockMovement{}, shared.Validation(op, ErrInvalidQuantity, "waste must reduce stock")
		}
	case ReasonCorrection:
	default:
		return StockMovement{}, shared.Validation(op, ErrInvalidReason, "manual adjustments must be waste or correction")
	}

	var movement StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = applyMovement(ctx, tx, MovementInput{
			WorkspaceID:      input.WorkspaceID,
			ProductID:        input.ProductID,
			Delta:            input.Delta,
			Reason:           input.Reason,
			AdjustmentReason: input.AdjustmentReason,
			Notes:            input.Notes,
			UserID:           input.UserID,
		}, s.now())
		return err
	})
	if err != nil {
		return StockMovement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			WorkspaceID: movement.WorkspaceID,
			ActorID:     input.UserID,
			Action:      fmt.Sprintf("inventory:%s", input.Reason),
			Entity:      "product",
			EntityID:    input.ProductID,
			Meta: map[string]any{
				"qty":    input.Delta,
				"reason": input.AdjustmentReason,
				"note":   input.Notes,
			},
		})
	}
	return movement, nil
}

// GetMovements lists a product's ledger rows in (from, to].
func (s *Service) GetMovements(ctx context.Context, filter StockCardFilter) ([]StockMovement, error) {
	if filter.ProductID == "" {
		return nil, shared.Validation("inventory.GetMovements", nil, "product is required")
	}
	var out []StockMovement
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListMovements(ctx, filter)
		return err
	})
	return out, err
}

// GetStockCard lists stock card entries with running balances.
func (s *Service) GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockCardEntry, error) {
	movements, err := s.GetMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	cards := make([]StockCardEntry, 0, len(movements))
	for _, m := range movements {
		entry := StockCardEntry{
			MovementID:  m.ID,
			Reason:      m.Reason,
			ReferenceID: m.ReferenceID,
			PostedAt:    m.CreatedAt,
			BalanceQty:  m.QuantityAfter,
			Note:        m.Notes,
		}
		if m.QuantityChange > 0 {
			entry.QtyIn = m.QuantityChange
		} else {
			entry.QtyOut = -m.QuantityChange
		}
		cards = append(cards, entry)
	}
	return cards, nil
}

// QuantityAt replays the ledger from the product's opening quantity up to
// and including at.
func (s *Service) QuantityAt(ctx context.Context, productID string, at time.Time) (int, error) {
	var qty int
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		movements, err := tx.ListMovements(ctx, StockCardFilter{ProductID: productID, To: at})
		if err != nil {
			return err
		}
		qty = product.OpeningQuantity + sumChanges(movements)
		return nil
	})
	if errors.Is(err, ErrProductNotFound) {
		return 0, shared.NotFound("inventory.QuantityAt", err, "product %s not found", productID)
	}
	return qty, err
}

// Reconcile compares each product's stock quantity with its opening quantity
// plus every ledger movement and returns the products that disagree.
func (s *Service) Reconcile(ctx context.Context, workspaceID string) ([]Mismatch, error) {
	var mismatches []Mismatch
	err := s.repo.View(ctx, func(ctx context.Context, tx TxRepository) error {
		products, err := tx.ListProducts(ctx, workspaceID)
		if err != nil {
			return err
		}
		movements, err := tx.ListWorkspaceMovements(ctx, workspaceID)
		if err != nil {
			return err
		}
		deltas := make(map[string]int, len(products))
		for _, m := range movements {
			deltas[m.ProductID] += m.QuantityChange
		}
		for _, p := range products {
			expected := p.OpeningQuantity + deltas[p.ID]
			if expected != p.StockQuantity {
				mismatches = append(mismatches, Mismatch{
					ProductID: p.ID,
					Name:      p.Name,
					Recorded:  p.StockQuantity,
					Expected:  expected,
				})
			}
		}
		return nil
	})
	return mismatches, err
}

func sumChanges(movements []StockMovement) int {
	total := 0
	for _, m := range movements {
		total += m.QuantityChange
	}
	return total
}
