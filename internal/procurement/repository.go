package procurement

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/numbering"
)

// Repository persists purchase orders in the local store.
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
	GetPO(ctx context.Context, id string) (PurchaseOrder, error)
	GetPOForUpdate(ctx context.Context, id string) (PurchaseOrder, error)
	InsertPO(ctx context.Context, po PurchaseOrder) error
	SavePO(ctx context.Context, po PurchaseOrder) error
	ListPOs(ctx context.Context, workspaceID string, statuses ...POStatus) ([]PurchaseOrder, error)
	ListSupplierPOs(ctx context.Context, supplierID string) ([]PurchaseOrder, error)
	ListProducts(ctx context.Context, workspaceID string) ([]inventory.Product, error)
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

func (t *txRepo) GetPO(ctx context.Context, id string) (PurchaseOrder, error) {
	return livePO(docstore.Get[PurchaseOrder](ctx, t.tx, Collection, id))
}

func (t *txRepo) GetPOForUpdate(ctx context.Context, id string) (PurchaseOrder, error) {
	return livePO(docstore.GetForUpdate[PurchaseOrder](ctx, t.tx, Collection, id))
}

func livePO(po PurchaseOrder, err error) (PurchaseOrder, error) {
	if errors.Is(err, docstore.ErrNotFound) || (err == nil && !po.Live()) {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, err
}

func (t *txRepo) InsertPO(ctx context.Context, po PurchaseOrder) error {
	return docstore.Insert(ctx, t.tx, Collection, po.ID, po)
}

func (t *txRepo) SavePO(ctx context.Context, po PurchaseOrder) error {
	return docstore.Save(ctx, t.tx, Collection, po.ID, po)
}

func (t *txRepo) ListPOs(ctx context.Context, workspaceID string, statuses ...POStatus) ([]PurchaseOrder, error) {
	all, err := docstore.Find[PurchaseOrder](ctx, t.tx, Collection, docstore.InWorkspace(workspaceID))
	if err != nil {
		return nil, err
	}
	out := all
	if len(statuses) > 0 {
		out = all[:0]
		for _, po := range all {
			for _, st := range statuses {
				if po.Status == st {
					out = append(out, po)
					break
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *txRepo) ListSupplierPOs(ctx context.Context, supplierID string) ([]PurchaseOrder, error) {
	return docstore.Find[PurchaseOrder](ctx, t.tx, Collection,
		docstore.Where("supplier_id", docstore.OpEq, supplierID).And(docstore.FieldDeleted, docstore.OpEq, false))
}

func (t *txRepo) ListProducts(ctx context.Context, workspaceID string) ([]inventory.Product, error) {
	return inventory.NewTxRepository(t.tx).ListProducts(ctx, workspaceID)
}

func (t *txRepo) GetProduct(ctx context.Context, id string) (inventory.Product, error) {
	return inventory.GetProduct(ctx, t.tx, id)
}

func (t *txRepo) ApplyMovement(ctx context.Context, in inventory.MovementInput, now time.Time) (inventory.StockMovement, error) {
	return inventory.ApplyMovement(ctx, t.tx, in, now)
}
