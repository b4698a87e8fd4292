package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// SyncReferenceType marks ledger rows written when a pull changed stock.
const SyncReferenceType = "sync"

const (
	fieldStockQuantity   = "stock_quantity"
	fieldOpeningQuantity = "opening_quantity"
)

// ApplyPulledProduct stores a product row pulled from the remote store while
// keeping the stock ledger whole. A new product opens at the pulled stock
// quantity. For a known product the local opening quantity is kept, and a
// different remote stock quantity is explained by a correction movement
// written in the same transaction.
func ApplyPulledProduct(ctx context.Context, tx docstore.Tx, row map[string]any, now time.Time) error {
	id, _ := row[docstore.FieldID].(string)
	if id == "" {
		return errors.New("inventory: pulled product without id")
	}
	remoteQty, hasQty, err := intField(row[fieldStockQuantity])
	if err != nil {
		return fmt.Errorf("inventory: pulled product %s: %w", id, err)
	}

	var local Product
	raw, err := tx.GetForUpdate(ctx, ProductsCollection, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		row[fieldStockQuantity] = remoteQty
		row[fieldOpeningQuantity] = remoteQty
		return putRow(ctx, tx, id, row)
	case err != nil:
		return err
	}
	if err := json.Unmarshal(raw, &local); err != nil {
		return fmt.Errorf("inventory: decode product %s: %w", id, err)
	}

	row[fieldOpeningQuantity] = local.OpeningQuantity
	if !hasQty {
		row[fieldStockQuantity] = local.StockQuantity
		return putRow(ctx, tx, id, row)
	}
	row[fieldStockQuantity] = remoteQty
	if delta := remoteQty - local.StockQuantity; delta != 0 {
		workspaceID, _ := row[docstore.FieldWorkspaceID].(string)
		if workspaceID == "" {
			workspaceID = local.WorkspaceID
		}
		movement := StockMovement{
			Record:           docstore.NewRecord(workspaceID, now),
			ProductID:        id,
			QuantityChange:   delta,
			QuantityAfter:    remoteQty,
			Reason:           ReasonCorrection,
			ReferenceType:    SyncReferenceType,
			AdjustmentReason: "remote stock",
		}
		if err := NewTxRepository(tx).InsertMovement(ctx, movement); err != nil {
			return err
		}
	}
	return putRow(ctx, tx, id, row)
}

func putRow(ctx context.Context, tx docstore.Tx, id string, row map[string]any) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("inventory: encode product %s: %w", id, err)
	}
	return tx.Put(ctx, ProductsCollection, id, body)
}

// intField reads a whole number from a decoded row. Remote rows arrive as
// JSON numbers (float64) or, from some backends, as strings.
func intField(v any) (int, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, false, fmt.Errorf("stock quantity %v is not whole", n)
		}
		return int(n), true, nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil, err
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil, err
	}
	return 0, false, fmt.Errorf("unsupported stock quantity %T", v)
}
