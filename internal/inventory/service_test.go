package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newTestService(t *testing.T) (*Service, *docstore.Memory, *stepClock) {
	t.Helper()
	store := docstore.NewMemory()
	clock := &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(NewRepository(store), shared.NewAuditLogger(store))
	svc.now = clock.now
	return svc, store, clock
}

func seedProduct(t *testing.T, svc *Service, qty int) Product {
	t.Helper()
	p, err := svc.UpsertProduct(context.Background(), ProductInput{
		WorkspaceID:   "ws",
		Name:          "Espresso beans",
		CostPrice:     decimal.NewFromInt(4),
		SalePrice:     decimal.NewFromInt(9),
		StockQuantity: qty,
		MinStockLevel: 2,
	})
	require.NoError(t, err)
	return p
}

func TestUpsertProductCapturesOpeningQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := seedProduct(t, svc, 12)
	require.Equal(t, 12, p.OpeningQuantity)
	require.Equal(t, docstore.SyncDirty, p.SyncState)

	updated, err := svc.UpsertProduct(context.Background(), ProductInput{
		ID: p.ID, WorkspaceID: "ws", Name: "Beans", StockQuantity: 99,
		SalePrice: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.Equal(t, "Beans", updated.Name)
	require.Equal(t, 12, updated.StockQuantity)
}

func TestAdjustStockValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	p := seedProduct(t, svc, 5)

	_, err := svc.AdjustStock(ctx, AdjustmentInput{WorkspaceID: "ws", ProductID: p.ID, Delta: 0, Reason: ReasonCorrection})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AdjustStock(ctx, AdjustmentInput{WorkspaceID: "ws", ProductID: p.ID, Delta: 2, Reason: ReasonWaste})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.AdjustStock(ctx, AdjustmentInput{WorkspaceID: "ws", ProductID: p.ID, Delta: 2, Reason: ReasonSale})
	require.ErrorIs(t, err, ErrInvalidReason)

	_, err = svc.AdjustStock(ctx, AdjustmentInput{WorkspaceID: "ws", ProductID: "missing", Delta: 1, Reason: ReasonCorrection})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.AdjustStock(ctx, AdjustmentInput{WorkspaceID: "other", ProductID: p.ID, Delta: 1, Reason: ReasonCorrection})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestAdjustStockAppendsLedgerRow(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	p := seedProduct(t, svc, 5)

	movement, err := svc.AdjustStock(ctx, AdjustmentInput{
		WorkspaceID: "ws", ProductID: p.ID, Delta: -2, Reason: ReasonWaste,
		AdjustmentReason: "expired", Notes: "bin 4",
	})
	require.NoError(t, err)
	require.Equal(t, -2, movement.QuantityChange)
	require.Equal(t, 3, movement.QuantityAfter)
	require.Equal(t, "expired", movement.AdjustmentReason)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.StockQuantity)
	require.Equal(t, docstore.SyncDirty, got.SyncState)

	card, err := svc.GetStockCard(ctx, StockCardFilter{ProductID: p.ID})
	require.NoError(t, err)
	require.Len(t, card, 1)
	require.Equal(t, 2, card[0].QtyOut)
	require.Equal(t, 3, card[0].BalanceQty)
}

func TestLedgerReconciliationOverTimeRanges(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)
	p := seedProduct(t, svc, 10)

	deltas := []struct {
		delta  int
		reason Reason
	}{
		{-3, ReasonSale}, {7, ReasonRestock}, {-1, ReasonWaste}, {2, ReasonReturn}, {-4, ReasonCorrection},
	}
	checkpoints := []time.Time{clock.t}
	quantities := []int{10}
	for _, d := range deltas {
		require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
			_, err := ApplyMovement(ctx, tx, MovementInput{WorkspaceID: "ws", ProductID: p.ID, Delta: d.delta, Reason: d.reason}, clock.now())
			return err
		}))
		got, err := svc.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		checkpoints = append(checkpoints, clock.t)
		quantities = append(quantities, got.StockQuantity)
	}

	for i := range checkpoints {
		for j := i; j < len(checkpoints); j++ {
			movements, err := svc.GetMovements(ctx, StockCardFilter{ProductID: p.ID, From: checkpoints[i], To: checkpoints[j]})
			require.NoError(t, err)
			require.Equal(t, quantities[j], quantities[i]+sumChanges(movements), "range %d..%d", i, j)
		}
		qty, err := svc.QuantityAt(ctx, p.ID, checkpoints[i])
		require.NoError(t, err)
		require.Equal(t, quantities[i], qty)
	}

	mismatches, err := svc.Reconcile(ctx, "ws")
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestReconcileReportsDirectStockEdits(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	p := seedProduct(t, svc, 10)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Update(ctx, ProductsCollection, p.ID, map[string]any{"stock_quantity": 4})
	}))

	mismatches, err := svc.Reconcile(ctx, "ws")
	require.NoError(t, err)
	require.Equal(t, []Mismatch{{ProductID: p.ID, Name: p.Name, Recorded: 4, Expected: 10}}, mismatches)
}

func TestApplyMovementOverwritesCostWhenGiven(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)
	p := seedProduct(t, svc, 0)
	cost := decimal.RequireFromString("5.25")

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		_, err := ApplyMovement(ctx, tx, MovementInput{ProductID: p.ID, Delta: 6, Reason: ReasonRestock, UnitCost: &cost}, clock.now())
		return err
	}))
	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 6, got.StockQuantity)
	require.True(t, got.CostPrice.Equal(cost))
}
