package giftcards

import (
	"context"
	"errors"
	"sort"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// Repository persists gift cards.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// TxRepository exposes transactional card access.
type TxRepository interface {
	GetByNumber(ctx context.Context, workspaceID, cardNumber string) (GiftCard, error)
	GetByNumberForUpdate(ctx context.Context, workspaceID, cardNumber string) (GiftCard, error)
	NumberExists(ctx context.Context, cardNumber string) (bool, error)
	Insert(ctx context.Context, card GiftCard) error
	Save(ctx context.Context, card GiftCard) error
	List(ctx context.Context, workspaceID string) ([]GiftCard, error)
}

type txRepo struct {
	tx docstore.Tx
}

// WithTx executes fn inside a read-write transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// View executes fn inside a read-only transaction.
func (r *Repository) View(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.View(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// find matches live cards of one workspace only.
func (t *txRepo) find(ctx context.Context, workspaceID, cardNumber string) ([]GiftCard, error) {
	return docstore.Find[GiftCard](ctx, t.tx, Collection,
		docstore.Where("card_number", docstore.OpEq, cardNumber).
			And(docstore.FieldWorkspaceID, docstore.OpEq, workspaceID).
			And(docstore.FieldDeleted, docstore.OpEq, false))
}

func (t *txRepo) GetByNumber(ctx context.Context, workspaceID, cardNumber string) (GiftCard, error) {
	cards, err := t.find(ctx, workspaceID, cardNumber)
	if err != nil {
		return GiftCard{}, err
	}
	if len(cards) == 0 {
		return GiftCard{}, ErrCardNotFound
	}
	return cards[0], nil
}

func (t *txRepo) GetByNumberForUpdate(ctx context.Context, workspaceID, cardNumber string) (GiftCard, error) {
	card, err := t.GetByNumber(ctx, workspaceID, cardNumber)
	if err != nil {
		return GiftCard{}, err
	}
	card, err = docstore.GetForUpdate[GiftCard](ctx, t.tx, Collection, card.ID)
	if errors.Is(err, docstore.ErrNotFound) {
		return GiftCard{}, ErrCardNotFound
	}
	return card, err
}

func (t *txRepo) NumberExists(ctx context.Context, cardNumber string) (bool, error) {
	cards, err := docstore.Find[GiftCard](ctx, t.tx, Collection, docstore.Where("card_number", docstore.OpEq, cardNumber))
	return len(cards) > 0, err
}

func (t *txRepo) Insert(ctx context.Context, card GiftCard) error {
	return docstore.Insert(ctx, t.tx, Collection, card.ID, card)
}

func (t *txRepo) Save(ctx context.Context, card GiftCard) error {
	return docstore.Save(ctx, t.tx, Collection, card.ID, card)
}

func (t *txRepo) List(ctx context.Context, workspaceID string) ([]GiftCard, error) {
	cards, err := docstore.Find[GiftCard](ctx, t.tx, Collection, docstore.InWorkspace(workspaceID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cards, func(i, j int) bool { return cards[i].CreatedAt.After(cards[j].CreatedAt) })
	return cards, nil
}
