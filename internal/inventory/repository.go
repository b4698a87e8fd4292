package inventory

import (
	"context"
	"errors"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// Repository persists inventory documents in the local store.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	GetProductForUpdate(ctx context.Context, id string) (Product, error)
	SaveProduct(ctx context.Context, product Product) error
	InsertProduct(ctx context.Context, product Product) error
	InsertMovement(ctx context.Context, movement StockMovement) error
	ListProducts(ctx context.Context, workspaceID string) ([]Product, error)
	ListMovements(ctx context.Context, filter StockCardFilter) ([]StockMovement, error)
	ListWorkspaceMovements(ctx context.Context, workspaceID string) ([]StockMovement, error)
}

type txRepo struct {
	tx docstore.Tx
}

// NewTxRepository wraps a store transaction opened by another package so
// its writes share the caller's atomicity.
func NewTxRepository(tx docstore.Tx) TxRepository {
	return &txRepo{tx: tx}
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

func (t *txRepo) GetProduct(ctx context.Context, id string) (Product, error) {
	return liveProduct(docstore.Get[Product](ctx, t.tx, ProductsCollection, id))
}

func (t *txRepo) GetProductForUpdate(ctx context.Context, id string) (Product, error) {
	return liveProduct(docstore.GetForUpdate[Product](ctx, t.tx, ProductsCollection, id))
}

func liveProduct(p Product, err error) (Product, error) {
	if errors.Is(err, docstore.ErrNotFound) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, err
	}
	if !p.Live() {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (t *txRepo) SaveProduct(ctx context.Context, product Product) error {
	return docstore.Save(ctx, t.tx, ProductsCollection, product.ID, product)
}

func (t *txRepo) InsertProduct(ctx context.Context, product Product) error {
	return docstore.Insert(ctx, t.tx, ProductsCollection, product.ID, product)
}

func (t *txRepo) InsertMovement(ctx context.Context, movement StockMovement) error {
	return docstore.Insert(ctx, t.tx, MovementsCollection, movement.ID, movement)
}

func (t *txRepo) ListProducts(ctx context.Context, workspaceID string) ([]Product, error) {
	return docstore.Find[Product](ctx, t.tx, ProductsCollection, docstore.InWorkspace(workspaceID))
}

func (t *txRepo) ListMovements(ctx context.Context, filter StockCardFilter) ([]StockMovement, error) {
	f := docstore.Where("product_id", docstore.OpEq, filter.ProductID)
	if !filter.From.IsZero() {
		f = f.And(docstore.FieldCreatedAt, docstore.OpGt, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		f = f.And(docstore.FieldCreatedAt, docstore.OpLte, filter.To.UTC())
	}
	return docstore.Find[StockMovement](ctx, t.tx, MovementsCollection, f)
}

func (t *txRepo) ListWorkspaceMovements(ctx context.Context, workspaceID string) ([]StockMovement, error) {
	return docstore.Find[StockMovement](ctx, t.tx, MovementsCollection,
		docstore.Where(docstore.FieldWorkspaceID, docstore.OpEq, workspaceID))
}
