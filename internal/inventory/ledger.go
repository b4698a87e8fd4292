package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// ApplyMovement is the only path that changes a product's stock quantity.
// It locks the product, applies the signed delta, marks the product dirty and
// appends the matching ledger row, all inside tx. Other packages call it from
// their own aggregate transaction.
func ApplyMovement(ctx context.Context, tx docstore.Tx, in MovementInput, now time.Time) (StockMovement, error) {
	return applyMovement(ctx, NewTxRepository(tx), in, now)
}

func applyMovement(ctx context.Context, tx TxRepository, in MovementInput, now time.Time) (StockMovement, error) {
	const op = "inventory.ApplyMovement"
	if in.Delta == 0 {
		return StockMovement{}, shared.Validation(op, ErrInvalidQuantity, "quantity change must be non zero")
	}
	if !in.Reason.Valid() {
		return StockMovement{}, shared.Validation(op, ErrInvalidReason, "unknown movement reason %q", in.Reason)
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return StockMovement{}, shared.Validation(op, ErrInvalidPrice, "unit cost must be >= 0")
	}

	product, err := tx.GetProductForUpdate(ctx, in.ProductID)
	if errors.Is(err, ErrProductNotFound) {
		return StockMovement{}, shared.NotFound(op, err, "product %s not found", in.ProductID)
	}
	if err != nil {
		return StockMovement{}, err
	}
	if in.WorkspaceID != "" && product.WorkspaceID != in.WorkspaceID {
		return StockMovement{}, shared.NotFound(op, ErrProductNotFound, "product %s not found", in.ProductID)
	}

	product.StockQuantity += in.Delta
	if in.UnitCost != nil {
		product.CostPrice = *in.UnitCost
	}
	product.MarkDirty(now)
	if err := tx.SaveProduct(ctx, product); err != nil {
		return StockMovement{}, err
	}

	movement := StockMovement{
		Record:           docstore.NewRecord(product.WorkspaceID, now),
		ProductID:        product.ID,
		QuantityChange:   in.Delta,
		QuantityAfter:    product.StockQuantity,
		Reason:           in.Reason,
		ReferenceType:    in.ReferenceType,
		ReferenceID:      in.ReferenceID,
		AdjustmentReason: in.AdjustmentReason,
		Notes:            in.Notes,
		UserID:           in.UserID,
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return StockMovement{}, err
	}
	return movement, nil
}

// GetProduct loads a live product inside another package's transaction.
func GetProduct(ctx context.Context, tx docstore.Tx, id string) (Product, error) {
	product, err := NewTxRepository(tx).GetProduct(ctx, id)
	if errors.Is(err, ErrProductNotFound) {
		return Product{}, shared.NotFound("inventory.GetProduct", err, "product %s not found", id)
	}
	return product, err
}
