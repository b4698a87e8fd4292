package suppliers

import (
	"context"
	"errors"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	View(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

type TxRepository interface {
	Get(ctx context.Context, id string) (Supplier, error)
	GetForUpdate(ctx context.Context, id string) (Supplier, error)
	Insert(ctx context.Context, supplier Supplier) error
	Save(ctx context.Context, supplier Supplier) error
	List(ctx context.Context, workspaceID string, activeOnly bool) ([]Supplier, error)
	LinksByProduct(ctx context.Context, productID string) ([]ProductSupplier, error)
	LinksBySupplier(ctx context.Context, supplierID string) ([]ProductSupplier, error)
	InsertLink(ctx context.Context, link ProductSupplier) error
	SaveLink(ctx context.Context, link ProductSupplier) error
	GetProduct(ctx context.Context, id string) (inventory.Product, error)
}

type repository struct {
	store docstore.Store
}

type txRepo struct {
	tx docstore.Tx
}

func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *repository) View(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.View(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) Get(ctx context.Context, id string) (Supplier, error) {
	return liveSupplier(docstore.Get[Supplier](ctx, t.tx, Collection, id))
}

func (t *txRepo) GetForUpdate(ctx context.Context, id string) (Supplier, error) {
	return liveSupplier(docstore.GetForUpdate[Supplier](ctx, t.tx, Collection, id))
}

func liveSupplier(s Supplier, err error) (Supplier, error) {
	if errors.Is(err, docstore.ErrNotFound) || (err == nil && !s.Live()) {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, err
}

func (t *txRepo) Insert(ctx context.Context, supplier Supplier) error {
	return docstore.Insert(ctx, t.tx, Collection, supplier.ID, supplier)
}

func (t *txRepo) Save(ctx context.Context, supplier Supplier) error {
	return docstore.Save(ctx, t.tx, Collection, supplier.ID, supplier)
}

func (t *txRepo) List(ctx context.Context, workspaceID string, activeOnly bool) ([]Supplier, error) {
	f := docstore.InWorkspace(workspaceID)
	if activeOnly {
		f = f.And("is_active", docstore.OpEq, true)
	}
	return docstore.Find[Supplier](ctx, t.tx, Collection, f)
}

func (t *txRepo) LinksByProduct(ctx context.Context, productID string) ([]ProductSupplier, error) {
	return docstore.Find[ProductSupplier](ctx, t.tx, LinksCollection,
		docstore.Where("product_id", docstore.OpEq, productID).And(docstore.FieldDeleted, docstore.OpEq, false))
}

func (t *txRepo) LinksBySupplier(ctx context.Context, supplierID string) ([]ProductSupplier, error) {
	return docstore.Find[ProductSupplier](ctx, t.tx, LinksCollection,
		docstore.Where("supplier_id", docstore.OpEq, supplierID).And(docstore.FieldDeleted, docstore.OpEq, false))
}

func (t *txRepo) InsertLink(ctx context.Context, link ProductSupplier) error {
	return docstore.Insert(ctx, t.tx, LinksCollection, link.ID, link)
}

func (t *txRepo) SaveLink(ctx context.Context, link ProductSupplier) error {
	return docstore.Save(ctx, t.tx, LinksCollection, link.ID, link)
}

func (t *txRepo) GetProduct(ctx context.Context, id string) (inventory.Product, error) {
	return inventory.GetProduct(ctx, t.tx, id)
}
