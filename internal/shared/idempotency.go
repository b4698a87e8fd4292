package shared

import (
	"context"
	"errors"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

const idempotencyCollection = "idempotency_keys"

// IdempotencyStore persists processed request keys.
type IdempotencyStore struct {
	store docstore.Store
	now   func() time.Time
}

type idempotencyKey struct {
	Key       string    `json:"key"`
	Module    string    `json:"module"`
	CreatedAt time.Time `json:"created_at"`
	Released  bool      `json:"released"`
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(store docstore.Store) *IdempotencyStore {
	return &IdempotencyStore{store: store, now: time.Now}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// CheckAndInsert ensures key uniqueness per module.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	id := module + ":" + key
	err := s.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		existing, err := docstore.GetForUpdate[idempotencyKey](ctx, tx, idempotencyCollection, id)
		switch {
		case err == nil && !existing.Released:
			return ErrIdempotencyConflict
		case err != nil && !errors.Is(err, docstore.ErrNotFound):
			return err
		}
		return docstore.Save(ctx, tx, idempotencyCollection, id, idempotencyKey{
			Key: key, Module: module, CreatedAt: s.now().UTC(),
		})
	})
	if errors.Is(err, docstore.ErrDuplicate) {
		return ErrIdempotencyConflict
	}
	return err
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		err := tx.Update(ctx, idempotencyCollection, module+":"+key, map[string]any{"released": true})
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	})
}
