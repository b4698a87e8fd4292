package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    seq        BIGSERIAL NOT NULL,
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    doc        JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_seq_idx ON documents (collection, seq);
CREATE INDEX IF NOT EXISTS documents_workspace_idx ON documents (collection, (doc->>'workspace_id'));
CREATE INDEX IF NOT EXISTS documents_sync_state_idx ON documents (collection, (doc->>'sync_state'));
CREATE INDEX IF NOT EXISTS documents_doc_idx ON documents USING GIN (doc jsonb_path_ops);
`

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Postgres stores documents in a single JSONB table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the documents table and its indexes.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("docstore: migrate: %w", err)
	}
	return nil
}

// WithTx implements Store using a repeatable-read transaction.
func (p *Postgres) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, p.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

// View implements Store.
func (p *Postgres) View(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, p.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	return t.get(ctx, `SELECT doc FROM documents WHERE collection = $1 AND id = $2`, collection, id)
}

func (t *pgTx) GetForUpdate(ctx context.Context, collection, id string) (json.RawMessage, error) {
	return t.get(ctx, `SELECT doc FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`, collection, id)
}

func (t *pgTx) get(ctx context.Context, query, collection, id string) (json.RawMessage, error) {
	var raw []byte
	if err := t.tx.QueryRow(ctx, query, collection, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

func (t *pgTx) Insert(ctx context.Context, collection, id string, doc json.RawMessage) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`, collection, id, []byte(doc))
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (t *pgTx) Put(ctx context.Context, collection, id string, doc json.RawMessage) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`, collection, id, []byte(doc))
	return err
}

func (t *pgTx) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("docstore: encode patch %s/%s: %w", collection, id, err)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE documents SET doc = doc || $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`, collection, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) BulkInsert(ctx context.Context, collection string, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, []any{collection, doc.ID, []byte(doc.Body)})
	}
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"documents"}, []string{"collection", "id", "doc"}, pgx.CopyFromRows(rows))
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (t *pgTx) Scan(ctx context.Context, collection string) ([]json.RawMessage, error) {
	return t.Find(ctx, collection, Filter{})
}

func (t *pgTx) Find(ctx context.Context, collection string, filter Filter) ([]json.RawMessage, error) {
	query, args, err := buildFind(collection, filter)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

func buildFind(collection string, filter Filter) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT doc FROM documents WHERE collection = $1`)
	args := []any{collection}
	for _, cond := range filter.Conditions {
		clause, arg, err := renderCondition(cond, len(args)+1)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(clause)
		if arg != nil {
			args = append(args, arg)
		}
	}
	sb.WriteString(" ORDER BY seq")
	if filter.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", filter.Limit)
	}
	return sb.String(), args, nil
}

func renderCondition(cond Condition, pos int) (string, any, error) {
	if !fieldPattern.MatchString(cond.Field) {
		return "", nil, fmt.Errorf("docstore: invalid field %q", cond.Field)
	}
	field := fmt.Sprintf("doc->>'%s'", cond.Field)
	if cond.Value == nil {
		switch cond.Op {
		case OpEq:
			return field + " IS NULL", nil, nil
		case OpNe:
			return field + " IS NOT NULL", nil, nil
		}
		return "", nil, fmt.Errorf("docstore: operator %s not supported for null", cond.Op)
	}
	op := string(cond.Op)
	if cond.Op == OpNe {
		op = "IS DISTINCT FROM"
	}
	placeholder := fmt.Sprintf("$%d", pos)
	if ts, ok := cond.Value.(time.Time); ok {
		return fmt.Sprintf("(%s)::timestamptz %s %s", field, op, placeholder), ts, nil
	}
	rv := reflect.ValueOf(cond.Value)
	switch rv.Kind() {
	case reflect.String:
		return fmt.Sprintf("%s %s %s", field, op, placeholder), rv.String(), nil
	case reflect.Bool:
		if cond.Op != OpEq && cond.Op != OpNe {
			return "", nil, fmt.Errorf("docstore: operator %s not supported for bool", cond.Op)
		}
		return fmt.Sprintf("(%s)::boolean %s %s", field, op, placeholder), rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("(%s)::numeric %s %s", field, op, placeholder), float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("(%s)::numeric %s %s", field, op, placeholder), float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("(%s)::numeric %s %s", field, op, placeholder), rv.Float(), nil
	}
	return "", nil, fmt.Errorf("docstore: unsupported filter value %T", cond.Value)
}
