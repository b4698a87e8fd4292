package layaway

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/numbering"
)

// Repository persists layaway orders in the local store.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	NextNumber(ctx context.Context, workspaceID string) (string, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	GetOrderForUpdate(ctx context.Context, id string) (Order, error)
	InsertOrder(ctx context.Context, order Order) error
	SaveOrder(ctx context.Context, order Order) error
	ListOrders(ctx context.Context, workspaceID string, status Status) ([]Order, error)
	GetProduct(ctx context.Context, id string) (inventory.Product, error)
	ApplyMovement(ctx context.Context, in inventory.MovementInput, now time.Time) (inventory.StockMovement, error)
}

type txRepo struct {
	tx docstore.Tx
}

// WithTx executes the callback inside a read-write transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// View executes the callback inside a read-only transaction.
func (r *Repository) View(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.View(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) NextNumber(ctx context.Context, workspaceID string) (string, error) {
	return numbering.Next(ctx, t.tx, Collection, workspaceID, NumberPrefix)
}

func (t *txRepo) GetOrder(ctx context.Context, id string) (Order, error) {
	return liveOrder(docstore.Get[Order](ctx, t.tx, Collection, id))
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id string) (Order, error) {
	return liveOrder(docstore.GetForUpdate[Order](ctx, t.tx, Collection, id))
}

func liveOrder(o Order, err error) (Order, error) {
	if errors.Is(err, docstore.ErrNotFound) || (err == nil && !o.Live()) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (t *txRepo) InsertOrder(ctx context.Context, order Order) error {
	return docstore.Insert(ctx, t.tx, Collection, order.ID, order)
}

func (t *txRepo) SaveOrder(ctx context.Context, order Order) error {
	return docstore.Save(ctx, t.tx, Collection, order.ID, order)
}

func (t *txRepo) ListOrders(ctx context.Context, workspaceID string, status Status) ([]Order, error) {
	f := docstore.InWorkspace(workspaceID)
	if status != "" {
		f = f.And("status", docstore.OpEq, string(status))
	}
	out, err := docstore.Find[Order](ctx, t.tx, Collection, f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *txRepo) GetProduct(ctx context.Context, id string) (inventory.Product, error) {
	return inventory.GetProduct(ctx, t.tx, id)
}

func (t *txRepo) ApplyMovement(ctx context.Context, in inventory.MovementInput, now time.Time) (inventory.StockMovement, error) {
	return inventory.ApplyMovement(ctx, t.tx, in, now)
}
