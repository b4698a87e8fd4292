package sales

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

// Repository persists sales in the local store.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetSale(ctx context.Context, id string) (Sale, error)
	GetSaleForUpdate(ctx context.Context, id string) (Sale, error)
	InsertSale(ctx context.Context, sale Sale) error
	SaveSale(ctx context.Context, sale Sale) error
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, error)
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

func (t *txRepo) GetSale(ctx context.Context, id string) (Sale, error) {
	return liveSale(docstore.Get[Sale](ctx, t.tx, Collection, id))
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, id string) (Sale, error) {
	return liveSale(docstore.GetForUpdate[Sale](ctx, t.tx, Collection, id))
}

func liveSale(s Sale, err error) (Sale, error) {
	if errors.Is(err, docstore.ErrNotFound) || (err == nil && !s.Live()) {
		return Sale{}, ErrSaleNotFound
	}
	return s, err
}

func (t *txRepo) InsertSale(ctx context.Context, sale Sale) error {
	return docstore.Insert(ctx, t.tx, Collection, sale.ID, sale)
}

func (t *txRepo) SaveSale(ctx context.Context, sale Sale) error {
	return docstore.Save(ctx, t.tx, Collection, sale.ID, sale)
}

func (t *txRepo) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	f := docstore.InWorkspace(filter.WorkspaceID)
	if !filter.From.IsZero() {
		f = f.And(docstore.FieldCreatedAt, docstore.OpGte, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		f = f.And(docstore.FieldCreatedAt, docstore.OpLte, filter.To.UTC())
	}
	out, err := docstore.Find[Sale](ctx, t.tx, Collection, f)
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
