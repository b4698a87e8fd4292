package layaway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pct(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

type fixture struct {
	svc     *Service
	inv     *inventory.Service
	audit   *shared.AuditLogger
	product inventory.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := docstore.NewMemory()
	inv := inventory.NewService(inventory.NewRepository(store), nil)
	product, err := inv.UpsertProduct(context.Background(), inventory.ProductInput{
		WorkspaceID:   "ws",
		Name:          "Road bike",
		CostPrice:     d("30"),
		SalePrice:     d("50"),
		StockQuantity: 5,
	})
	require.NoError(t, err)
	audit := shared.NewAuditLogger(store)
	svc := NewService(NewRepository(store), audit, ServiceConfig{
		TaxRate:                     d("0.20"),
		MinDepositPercent:           d("20"),
		DefaultRestockingFeePercent: d("10"),
	})
	return fixture{svc: svc, inv: inv, audit: audit, product: product}
}

func (f fixture) create(t *testing.T, deposit string) (Order, error) {
	t.Helper()
	return f.svc.CreateLayawayOrder(context.Background(), CreateInput{
		WorkspaceID:       "ws",
		CustomerID:        "cust-1",
		UserID:            "cashier",
		Items:             []ItemInput{{ProductID: f.product.ID, Quantity: 2}},
		DepositAmount:     d(deposit),
		DepositPercentage: pct("20"),
	})
}

func (f fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.inv.GetProduct(context.Background(), f.product.ID)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestCreateLayawayDepositMinimum(t *testing.T) {
	f := newFixture(t)

	_, err := f.create(t, "20")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, err, ErrInsufficientDeposit)
	require.Equal(t, 5, f.stock(t))

	order, err := f.create(t, "24")
	require.NoError(t, err)
	require.True(t, order.Subtotal.Equal(d("100")))
	require.True(t, order.Tax.Equal(d("20")))
	require.True(t, order.Total.Equal(d("120")))
	require.True(t, order.BalanceDue.Equal(d("96")), order.BalanceDue.String())
	require.Equal(t, StatusActive, order.Status)
	require.Equal(t, "LAY-001", order.Number)
	require.Len(t, order.Payments, 1)
	require.Equal(t, "deposit", order.Payments[0].Notes)
	require.Equal(t, docstore.SyncDirty, order.SyncState)

	require.Equal(t, 3, f.stock(t))
	movements, err := f.inv.GetMovements(context.Background(), inventory.StockCardFilter{ProductID: f.product.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, inventory.ReasonCorrection, movements[0].Reason)
	require.Equal(t, order.ID, movements[0].ReferenceID)

	second, err := f.create(t, "120")
	require.NoError(t, err)
	require.Equal(t, "LAY-002", second.Number)
	require.Equal(t, StatusCompleted, second.Status)
	require.NotNil(t, second.CompletedAt)

	trail, err := f.audit.List(context.Background(), "layaway_order", order.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, "layaway:create", trail[0].Action)
}

func TestCreateLayawayUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateLayawayOrder(context.Background(), CreateInput{
		WorkspaceID:   "ws",
		CustomerID:    "cust-1",
		Items:         []ItemInput{{ProductID: "nope", Quantity: 1}},
		DepositAmount: d("100"),
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDepositPercentageDefaultAndExplicitZero(t *testing.T) {
	f := newFixture(t)
	input := CreateInput{
		WorkspaceID:   "ws",
		CustomerID:    "cust-1",
		Items:         []ItemInput{{ProductID: f.product.ID, Quantity: 1}},
		DepositAmount: d("0"),
	}

	_, err := f.svc.CreateLayawayOrder(context.Background(), input)
	require.ErrorIs(t, err, ErrInsufficientDeposit, "nil percentage uses the 20% default")

	input.DepositPercentage = pct("0")
	order, err := f.svc.CreateLayawayOrder(context.Background(), input)
	require.NoError(t, err)
	require.True(t, order.DepositPercentage.IsZero())
	require.True(t, order.BalanceDue.Equal(order.Total), order.BalanceDue.String())
	require.Equal(t, StatusActive, order.Status)
}

func TestPaymentsCompleteLayaway(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order, err := f.create(t, "24")
	require.NoError(t, err)

	order, err = f.svc.RecordPayment(ctx, PaymentInput{OrderID: order.ID, Amount: d("50")})
	require.NoError(t, err)
	require.True(t, order.BalanceDue.Equal(d("46")))
	require.Equal(t, StatusActive, order.Status)

	_, err = f.svc.RecordPayment(ctx, PaymentInput{OrderID: order.ID, Amount: d("0")})
	require.ErrorIs(t, err, ErrInvalidAmount)

	order, err = f.svc.RecordPayment(ctx, PaymentInput{OrderID: order.ID, Amount: d("50"), PaymentMethod: "card"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, order.Status)
	require.True(t, order.BalanceDue.Sign() <= 0)
	require.True(t, order.BalanceDue.Equal(order.Total.Sub(order.Paid())))
	require.Equal(t, "card", order.Payments[2].PaymentMethod)

	_, err = f.svc.RecordPayment(ctx, PaymentInput{OrderID: order.ID, Amount: d("1")})
	require.ErrorIs(t, err, shared.ErrStateConflict)

	_, err = f.svc.RecordPayment(ctx, PaymentInput{OrderID: "missing", Amount: d("1")})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCancelLayawayRefundsAndRestocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order, err := f.create(t, "24")
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, PaymentInput{OrderID: order.ID, Amount: d("26")})
	require.NoError(t, err)
	require.Equal(t, 3, f.stock(t))

	result, err := f.svc.CancelLayaway(ctx, order.ID, true, "manager")
	require.NoError(t, err)
	require.True(t, result.Paid.Equal(d("50")))
	require.True(t, result.RestockingFee.Equal(d("5")))
	require.True(t, result.RefundAmount.Equal(d("45")))
	require.Equal(t, StatusCancelled, result.Order.Status)
	require.Equal(t, 5, f.stock(t))

	_, err = f.svc.CancelLayaway(ctx, order.ID, false, "manager")
	require.ErrorIs(t, err, ErrNotActive)

	mismatches, err := f.inv.Reconcile(ctx, "ws")
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestCancelWithoutFeeRefundsEverything(t *testing.T) {
	f := newFixture(t)
	order, err := f.create(t, "30")
	require.NoError(t, err)
	result, err := f.svc.CancelLayaway(context.Background(), order.ID, false, "")
	require.NoError(t, err)
	require.True(t, result.RefundAmount.Equal(d("30")))
	require.True(t, result.RestockingFee.IsZero())
}

func TestLayawayQueriesAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	active, err := f.create(t, "24")
	require.NoError(t, err)
	_, err = f.create(t, "120")
	require.NoError(t, err)
	cancelled, err := f.create(t, "40")
	require.NoError(t, err)
	_, err = f.svc.CancelLayaway(ctx, cancelled.ID, true, "")
	require.NoError(t, err)

	orders, err := f.svc.GetLayawayOrders(ctx, "ws", "")
	require.NoError(t, err)
	require.Len(t, orders, 3)

	onlyActive, err := f.svc.GetLayawayOrders(ctx, "ws", StatusActive)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	require.Equal(t, active.ID, onlyActive[0].ID)

	stats, err := f.svc.GetLayawayStats(ctx, "ws")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Active)
	require.Equal(t, 1, stats.Completed)
	require.Equal(t, 1, stats.Cancelled)
	require.True(t, stats.OutstandingBalance.Equal(d("96")))
	require.True(t, stats.Collected.Equal(d("148")), stats.Collected.String())

	_, err = f.svc.GetLayawayOrderByID(ctx, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
