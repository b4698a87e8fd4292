package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local Store. Write transactions are serialised by a
// single lock and buffered until commit. Not durable; used by tests and the
// STORE_DRIVER=memory mode.
type Memory struct {
	mu    sync.RWMutex
	colls map[string]map[string]memDoc
	seq   int64
}

type memDoc struct {
	seq  int64
	body json.RawMessage
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{colls: make(map[string]map[string]memDoc)}
}

// WithTx implements Store. Calling WithTx or View from inside fn deadlocks.
func (m *Memory) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{store: m, pending: make(map[string]map[string]memDoc)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for coll, docs := range tx.pending {
		target := m.colls[coll]
		if target == nil {
			target = make(map[string]memDoc)
			m.colls[coll] = target
		}
		for id, doc := range docs {
			target[id] = doc
		}
	}
	return nil
}

// View implements Store.
func (m *Memory) View(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(ctx, &memTx{store: m, readOnly: true})
}

// Close implements Store.
func (m *Memory) Close() {}

type memTx struct {
	store    *Memory
	pending  map[string]map[string]memDoc
	readOnly bool
}

func (t *memTx) lookup(collection, id string) (memDoc, bool) {
	if docs, ok := t.pending[collection]; ok {
		if doc, ok := docs[id]; ok {
			return doc, true
		}
	}
	doc, ok := t.store.colls[collection][id]
	return doc, ok
}

func (t *memTx) write(collection, id string, body json.RawMessage, seq int64) {
	docs := t.pending[collection]
	if docs == nil {
		docs = make(map[string]memDoc)
		t.pending[collection] = docs
	}
	docs[id] = memDoc{seq: seq, body: append(json.RawMessage(nil), body...)}
}

func (t *memTx) nextSeq() int64 {
	t.store.seq++
	return t.store.seq
}

func (t *memTx) Get(_ context.Context, collection, id string) (json.RawMessage, error) {
	doc, ok := t.lookup(collection, id)
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), doc.body...), nil
}

func (t *memTx) GetForUpdate(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if t.readOnly {
		return nil, ErrReadOnly
	}
	return t.Get(ctx, collection, id)
}

func (t *memTx) Insert(_ context.Context, collection, id string, doc json.RawMessage) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, exists := t.lookup(collection, id); exists {
		return ErrDuplicate
	}
	if !json.Valid(doc) {
		return fmt.Errorf("docstore: invalid json for %s/%s", collection, id)
	}
	t.write(collection, id, doc, t.nextSeq())
	return nil
}

func (t *memTx) Put(_ context.Context, collection, id string, doc json.RawMessage) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if !json.Valid(doc) {
		return fmt.Errorf("docstore: invalid json for %s/%s", collection, id)
	}
	seq := int64(0)
	if existing, ok := t.lookup(collection, id); ok {
		seq = existing.seq
	} else {
		seq = t.nextSeq()
	}
	t.write(collection, id, doc, seq)
	return nil
}

func (t *memTx) Update(_ context.Context, collection, id string, patch map[string]any) error {
	if t.readOnly {
		return ErrReadOnly
	}
	existing, ok := t.lookup(collection, id)
	if !ok {
		return ErrNotFound
	}
	var fields map[string]any
	if err := json.Unmarshal(existing.body, &fields); err != nil {
		return fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
	}
	for k, v := range patch {
		fields[k] = v
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	t.write(collection, id, body, existing.seq)
	return nil
}

func (t *memTx) BulkInsert(ctx context.Context, collection string, docs []Doc) error {
	for _, doc := range docs {
		if err := t.Insert(ctx, collection, doc.ID, doc.Body); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTx) Scan(ctx context.Context, collection string) ([]json.RawMessage, error) {
	return t.Find(ctx, collection, Filter{})
}

func (t *memTx) Find(_ context.Context, collection string, filter Filter) ([]json.RawMessage, error) {
	merged := make(map[string]memDoc, len(t.store.colls[collection]))
	for id, doc := range t.store.colls[collection] {
		merged[id] = doc
	}
	for id, doc := range t.pending[collection] {
		merged[id] = doc
	}
	ordered := make([]memDoc, 0, len(merged))
	for _, doc := range merged {
		ordered = append(ordered, doc)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	out := make([]json.RawMessage, 0, len(ordered))
	for _, doc := range ordered {
		ok, err := matches(doc.body, filter.Conditions)
		if err != nil {
			return nil, fmt.Errorf("docstore: filter %s: %w", collection, err)
		}
		if !ok {
			continue
		}
		out = append(out, append(json.RawMessage(nil), doc.body...))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func matches(body json.RawMessage, conds []Condition) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return false, err
	}
	for _, cond := range conds {
		ok, err := compare(fields[cond.Field], cond.Op, cond.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func compare(docVal any, op Op, value any) (bool, error) {
	if value == nil {
		switch op {
		case OpEq:
			return docVal == nil, nil
		case OpNe:
			return docVal != nil, nil
		}
		return false, fmt.Errorf("operator %s not supported for null", op)
	}
	if docVal == nil {
		return op == OpNe, nil
	}
	if ts, ok := value.(time.Time); ok {
		s, ok := docVal.(string)
		if !ok {
			return false, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return false, nil
		}
		return ordered(parsed.Compare(ts), op), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		s, ok := docVal.(string)
		if !ok {
			return op == OpNe, nil
		}
		return ordered(strings.Compare(s, rv.String()), op), nil
	case reflect.Bool:
		b, ok := docVal.(bool)
		if !ok {
			return op == OpNe, nil
		}
		switch op {
		case OpEq:
			return b == rv.Bool(), nil
		case OpNe:
			return b != rv.Bool(), nil
		}
		return false, fmt.Errorf("operator %s not supported for bool", op)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return compareFloat(docVal, float64(rv.Int()), op), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return compareFloat(docVal, float64(rv.Uint()), op), nil
	case reflect.Float32, reflect.Float64:
		return compareFloat(docVal, rv.Float(), op), nil
	}
	return false, fmt.Errorf("unsupported filter value %T", value)
}

func compareFloat(docVal any, want float64, op Op) bool {
	got, ok := docVal.(float64)
	if !ok {
		return op == OpNe
	}
	switch {
	case got < want:
		return ordered(-1, op)
	case got > want:
		return ordered(1, op)
	}
	return ordered(0, op)
}

func ordered(cmp int, op Op) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}
