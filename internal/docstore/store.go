// Package docstore is the local, transactional document store every POS
// service reads and writes. Documents are JSON objects grouped in
// collections and addressed by id.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrDuplicate indicates an insert collided with an existing id.
	ErrDuplicate = errors.New("docstore: duplicate document")
	// ErrReadOnly is returned when a View transaction attempts a write.
	ErrReadOnly = errors.New("docstore: read-only transaction")
)

// Store opens transactions against the underlying backend.
type Store interface {
	// WithTx runs fn in a read-write transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(context.Context, Tx) error) error
	Close()
}

// Tx exposes per-collection document operations.
type Tx interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	// GetForUpdate reads and locks the document until the transaction ends.
	GetForUpdate(ctx context.Context, collection, id string) (json.RawMessage, error)
	Insert(ctx context.Context, collection, id string, doc json.RawMessage) error
	// Put inserts or replaces the document.
	Put(ctx context.Context, collection, id string, doc json.RawMessage) error
	// Update merges the top-level fields of patch into the stored document.
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	BulkInsert(ctx context.Context, collection string, docs []Doc) error
	Find(ctx context.Context, collection string, filter Filter) ([]json.RawMessage, error)
	Scan(ctx context.Context, collection string) ([]json.RawMessage, error)
}

// Doc pairs an id with an encoded document for bulk operations.
type Doc struct {
	ID   string
	Body json.RawMessage
}

// Op is a comparison operator for Condition.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "<>"
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Condition compares a top-level document field with a value. Values may be
// string, bool, numeric or time.Time.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions. Results keep insertion order.
type Filter struct {
	Conditions []Condition
	Limit      int
}

// Where starts a filter with one condition.
func Where(field string, op Op, value any) Filter {
	return Filter{Conditions: []Condition{{Field: field, Op: op, Value: value}}}
}

// And appends a condition.
func (f Filter) And(field string, op Op, value any) Filter {
	conds := make([]Condition, 0, len(f.Conditions)+1)
	conds = append(conds, f.Conditions...)
	f.Conditions = append(conds, Condition{Field: field, Op: op, Value: value})
	return f
}

// Get decodes the document into T.
func Get[T any](ctx context.Context, tx Tx, collection, id string) (T, error) {
	var out T
	raw, err := tx.Get(ctx, collection, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
	}
	return out, nil
}

// GetForUpdate decodes and locks the document.
func GetForUpdate[T any](ctx context.Context, tx Tx, collection, id string) (T, error) {
	var out T
	raw, err := tx.GetForUpdate(ctx, collection, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
	}
	return out, nil
}

// Find decodes all documents matching filter.
func Find[T any](ctx context.Context, tx Tx, collection string, filter Filter) ([]T, error) {
	rows, err := tx.Find(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](collection, rows)
}

// All decodes every document of the collection.
func All[T any](ctx context.Context, tx Tx, collection string) ([]T, error) {
	rows, err := tx.Scan(ctx, collection)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](collection, rows)
}

// Insert encodes doc and inserts it under id.
func Insert(ctx context.Context, tx Tx, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	return tx.Insert(ctx, collection, id, raw)
}

// Save encodes doc and upserts it under id.
func Save(ctx context.Context, tx Tx, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	return tx.Put(ctx, collection, id, raw)
}

func decodeAll[T any](collection string, rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("docstore: decode %s: %w", collection, err)
		}
		out = append(out, item)
	}
	return out, nil
}
