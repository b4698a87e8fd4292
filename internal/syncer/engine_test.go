package syncer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/syncer"
)

var errOffline = errors.New("connection refused")

type fakeRemote struct {
	mu         sync.Mutex
	tables     map[string]map[string]map[string]any
	inserts    map[string]int
	failInsert map[string]int
	selectErr  error
	entered    chan struct{}
	release    chan struct{}
	onInsert   func(collection string)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tables:     make(map[string]map[string]map[string]any),
		inserts:    make(map[string]int),
		failInsert: make(map[string]int),
	}
}

func (f *fakeRemote) put(collection string, row map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tables[collection] == nil {
		f.tables[collection] = make(map[string]map[string]any)
	}
	f.tables[collection][row["id"].(string)] = maps.Clone(row)
}

func (f *fakeRemote) Select(ctx context.Context, collection string, since time.Time) ([]map[string]any, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []map[string]any
	for _, row := range f.tables[collection] {
		ts, err := time.Parse(time.RFC3339Nano, row["updated_at"].(string))
		if err != nil {
			return nil, err
		}
		if ts.After(since) {
			out = append(out, maps.Clone(row))
		}
	}
	return out, nil
}

func (f *fakeRemote) Insert(_ context.Context, collection string, rows []map[string]any) error {
	f.mu.Lock()
	if f.failInsert[collection] > 0 {
		f.failInsert[collection]--
		f.mu.Unlock()
		return errOffline
	}
	f.inserts[collection]++
	hook := f.onInsert
	f.mu.Unlock()
	for _, row := range rows {
		f.put(collection, row)
	}
	if hook != nil {
		hook(collection)
	}
	return nil
}

func (f *fakeRemote) setSelectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selectErr = err
}

func (f *fakeRemote) count(collection string) (rows, calls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[collection]), f.inserts[collection]
}

type harness struct {
	store  *docstore.Memory
	remote *fakeRemote
	engine *syncer.Engine
	sales  *sales.Service
	inv    *inventory.Service
}

func newHarness(t *testing.T, attempts int) harness {
	t.Helper()
	return newHarnessWith(t, func(cfg *syncer.EngineConfig) { cfg.PushAttempts = attempts })
}

func newHarnessWith(t *testing.T, tune func(*syncer.EngineConfig)) harness {
	t.Helper()
	store := docstore.NewMemory()
	remote := newFakeRemote()
	remote.put(inventory.ProductsCollection, map[string]any{
		"id":             "p1",
		"workspace_id":   "ws",
		"name":           "Espresso beans",
		"cost_price":     "4",
		"sale_price":     "10",
		"stock_quantity": 20,
		"created_at":     "2026-03-01T08:00:00Z",
		"updated_at":     "2026-03-01T09:00:00Z",
	})
	cfg := syncer.EngineConfig{
		Interval:     time.Hour,
		CallTimeout:  time.Second,
		PushAttempts: 1,
		RetryBackoff: time.Millisecond,
		Pull: []syncer.PullSpec{
			{Collection: inventory.ProductsCollection, Apply: inventory.ApplyPulledProduct},
		},
		Push: []syncer.PushSpec{
			{Collection: sales.Collection, Split: sales.RemoteWrites},
			{Collection: inventory.MovementsCollection, Split: syncer.SingleRow(inventory.MovementsCollection)},
		},
	}
	tune(&cfg)
	engine := syncer.NewEngine(store, remote, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil)
	return harness{
		store:  store,
		remote: remote,
		engine: engine,
		sales:  sales.NewService(sales.NewRepository(store), sales.ServiceConfig{TaxRate: decimal.RequireFromString("0.20")}),
		inv:    inventory.NewService(inventory.NewRepository(store), nil),
	}
}

func (h harness) sell(t *testing.T) sales.Sale {
	t.Helper()
	sale, err := h.sales.CreateSale(context.Background(), sales.CreateInput{
		WorkspaceID:   "ws",
		Items:         []sales.ItemInput{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	return sale
}

func TestBackToBackCyclesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)

	ev, err := h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, syncer.CycleSucceeded, ev.Status)
	require.Equal(t, 1, ev.Pulled)
	product, err := h.inv.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 20, product.StockQuantity)
	require.Equal(t, docstore.SyncClean, product.SyncState)

	watermark, err := h.engine.Watermark(ctx)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), watermark)

	sale := h.sell(t)

	ev, err = h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 0, ev.Pulled)
	require.Equal(t, 2, ev.Pushed)
	rows, calls := h.remote.count(sales.Collection)
	require.Equal(t, 1, rows)
	require.Equal(t, 1, calls)
	rows, _ = h.remote.count(sales.ItemsCollection)
	require.Equal(t, 1, rows)
	rows, _ = h.remote.count(inventory.MovementsCollection)
	require.Equal(t, 1, rows)

	stored, err := h.sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, docstore.SyncClean, stored.SyncState)
	require.NotNil(t, stored.SyncedAt)

	ev, err = h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	require.Zero(t, ev.Pulled)
	require.Zero(t, ev.Pushed)
	_, calls = h.remote.count(sales.Collection)
	require.Equal(t, 1, calls)
	after, err := h.engine.Watermark(ctx)
	require.NoError(t, err)
	require.Equal(t, watermark, after)
}

func TestPullOverwritesLocalChanges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	_, err := h.inv.UpsertProduct(ctx, inventory.ProductInput{ID: "p1", WorkspaceID: "ws", Name: "Local name", StockQuantity: 3})
	require.NoError(t, err)

	_, err = h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	product, err := h.inv.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "Espresso beans", product.Name)
	require.Equal(t, 20, product.StockQuantity)
	require.Equal(t, 3, product.OpeningQuantity)
	requireReconciled(t, h)
}

func TestPushRetriesThenAbortsRemainingRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	_, err := h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	sale := h.sell(t)

	h.remote.failInsert[sales.Collection] = 1
	ev, err := h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 2, ev.Pushed)

	h.sell(t)
	h.remote.failInsert[sales.Collection] = 5
	ev, err = h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.Error(t, err)
	require.ErrorIs(t, err, shared.ErrSync)
	require.ErrorIs(t, err, errOffline)
	require.Equal(t, syncer.CycleFailed, ev.Status)
	require.Zero(t, ev.Pushed)
	rows, _ := h.remote.count(inventory.MovementsCollection)
	require.Equal(t, 1, rows, "movements of the failed cycle must not be pushed")

	var dirty int
	require.NoError(t, h.store.View(ctx, func(ctx context.Context, tx docstore.Tx) error {
		found, err := tx.Find(ctx, sales.Collection, docstore.Where(docstore.FieldSyncState, docstore.OpEq, string(docstore.SyncDirty)))
		dirty = len(found)
		return err
	}))
	require.Equal(t, 1, dirty)

	h.remote.failInsert[sales.Collection] = 0
	ev, err = h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 2, ev.Pushed)
	rows, _ = h.remote.count(sales.Collection)
	require.Equal(t, 2, rows)

	stored, err := h.sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, docstore.SyncClean, stored.SyncState)
}

func TestPullFailureSkipsPush(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	_, err := h.inv.UpsertProduct(ctx, inventory.ProductInput{ID: "p1", WorkspaceID: "ws", Name: "Beans", StockQuantity: 5})
	require.NoError(t, err)
	h.sell(t)
	h.remote.selectErr = errOffline

	ev, err := h.engine.SyncNow(ctx, syncer.TriggerTimer)
	require.ErrorIs(t, err, shared.ErrSync)
	require.Equal(t, syncer.CycleFailed, ev.Status)
	require.Contains(t, ev.Error, "connection refused")
	rows, _ := h.remote.count(sales.Collection)
	require.Zero(t, rows)

	st := h.engine.Status()
	require.Equal(t, syncer.StateIdle, st.State)
	require.NotNil(t, st.LastEvent)
	require.Nil(t, st.LastSuccessAt)
}

func TestConcurrentTriggerIsDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	h.remote.entered = make(chan struct{})
	h.remote.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.SyncNow(ctx, syncer.TriggerTimer)
		done <- err
	}()
	<-h.remote.entered

	require.Equal(t, syncer.StateSyncing, h.engine.Status().State)
	_, err := h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.ErrorIs(t, err, syncer.ErrSyncInProgress)

	close(h.remote.release)
	require.NoError(t, <-done)
	require.Equal(t, syncer.StateIdle, h.engine.Status().State)
}

func TestStartResetsInFlightAndOnlineEdgeSyncs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	_, err := h.inv.UpsertProduct(ctx, inventory.ProductInput{ID: "p1", WorkspaceID: "ws", Name: "Beans", StockQuantity: 5})
	require.NoError(t, err)
	sale := h.sell(t)
	require.NoError(t, h.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Update(ctx, sales.Collection, sale.ID, map[string]any{docstore.FieldSyncState: docstore.SyncInFlight})
	}))

	h.engine.SetOnline(false)
	require.NoError(t, h.engine.Start(ctx))
	defer h.engine.Stop()
	require.Error(t, h.engine.Start(ctx))

	stored, err := h.sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, docstore.SyncDirty, stored.SyncState)

	events, unsubscribe := h.engine.Subscribe()
	defer unsubscribe()
	h.engine.SetOnline(true)

	select {
	case ev := <-events:
		require.Equal(t, syncer.TriggerOnline, ev.Trigger)
		require.Equal(t, syncer.CycleSucceeded, ev.Status)
		// the sale, its movement and the correction written by the pull
		require.Equal(t, 3, ev.Pushed)
	case <-time.After(2 * time.Second):
		t.Fatal("no sync event after going online")
	}
}

func requireReconciled(t *testing.T, h harness) {
	t.Helper()
	mismatches, err := h.inv.Reconcile(context.Background(), "ws")
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestPulledProductsKeepLedgerReconciled(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)

	_, err := h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	product, err := h.inv.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 20, product.OpeningQuantity)
	requireReconciled(t, h)

	h.sell(t)
	requireReconciled(t, h)

	h.remote.put(inventory.ProductsCollection, map[string]any{
		"id":             "p1",
		"workspace_id":   "ws",
		"name":           "Espresso beans",
		"cost_price":     "4",
		"sale_price":     "11",
		"stock_quantity": 50,
		"created_at":     "2026-03-01T08:00:00Z",
		"updated_at":     "2026-03-02T09:00:00Z",
	})
	ev, err := h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 1, ev.Pulled)

	product, err = h.inv.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 50, product.StockQuantity)
	require.Equal(t, 20, product.OpeningQuantity)
	require.True(t, product.SalePrice.Equal(decimal.NewFromInt(11)))
	requireReconciled(t, h)

	movements, err := h.inv.GetMovements(ctx, inventory.StockCardFilter{ProductID: "p1"})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	var correction inventory.StockMovement
	for _, m := range movements {
		if m.ReferenceType == inventory.SyncReferenceType {
			correction = m
		}
	}
	require.Equal(t, inventory.ReasonCorrection, correction.Reason)
	require.Equal(t, inventory.SyncReferenceType, correction.ReferenceType)
	require.Equal(t, 32, correction.QuantityChange)
	require.Equal(t, 50, correction.QuantityAfter)

	qty, err := h.inv.QuantityAt(ctx, "p1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 50, qty)
}

func TestRemoteCallTimeoutFailsCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarnessWith(t, func(cfg *syncer.EngineConfig) { cfg.CallTimeout = 20 * time.Millisecond })
	h.remote.entered = make(chan struct{}, 1)

	started := time.Now()
	ev, err := h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.Error(t, err)
	require.ErrorIs(t, err, shared.ErrSync)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(started), time.Second)
	require.Equal(t, syncer.CycleFailed, ev.Status)
	require.Equal(t, syncer.StateIdle, h.engine.Status().State)

	h.remote.entered = nil
	ev, err = h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 1, ev.Pulled)
}

func TestTimerKeepsRunningAfterFailedCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarnessWith(t, func(cfg *syncer.EngineConfig) { cfg.Interval = 20 * time.Millisecond })
	h.remote.setSelectErr(errOffline)

	events, unsubscribe := h.engine.Subscribe()
	defer unsubscribe()
	require.NoError(t, h.engine.Start(ctx))
	defer h.engine.Stop()

	deadline := time.After(3 * time.Second)
	sawFailure := false
	for {
		select {
		case ev := <-events:
			if ev.Status == syncer.CycleFailed {
				sawFailure = true
				h.remote.setSelectErr(nil)
				continue
			}
			if sawFailure && ev.Trigger == syncer.TriggerTimer && ev.Status == syncer.CycleSucceeded {
				require.Equal(t, 1, ev.Pulled)
				return
			}
		case <-deadline:
			t.Fatalf("no successful timer cycle after a failure (saw failure: %v)", sawFailure)
		}
	}
}

func TestPushedRecordSettlesWhenCallerCancels(t *testing.T) {
	h := newHarness(t, 1)
	_, err := h.engine.SyncNow(context.Background(), syncer.TriggerManual)
	require.NoError(t, err)
	sale := h.sell(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.remote.onInsert = func(collection string) {
		if collection == sales.Collection {
			cancel()
		}
	}
	_, err = h.engine.SyncNow(ctx, syncer.TriggerManual)
	require.ErrorIs(t, err, context.Canceled)

	stored, err := h.sales.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, docstore.SyncClean, stored.SyncState)
	require.NotNil(t, stored.SyncedAt)
}
