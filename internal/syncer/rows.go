package syncer

import (
	"encoding/json"
	"fmt"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// Write is one row destined for a remote collection.
type Write struct {
	Collection string
	Row        map[string]any
}

// localOnly lists document fields that never leave the terminal.
var localOnly = []string{docstore.FieldSyncState, "synced_at"}

// RowOf decodes a local document into a remote row without the local sync
// bookkeeping.
func RowOf(raw json.RawMessage) (map[string]any, error) {
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("syncer: decode row: %w", err)
	}
	for _, f := range localOnly {
		delete(row, f)
	}
	return row, nil
}

// SingleRow pushes the document unchanged into a remote collection of the
// same name.
func SingleRow(collection string) func(json.RawMessage) ([]Write, error) {
	return func(raw json.RawMessage) ([]Write, error) {
		row, err := RowOf(raw)
		if err != nil {
			return nil, err
		}
		return []Write{{Collection: collection, Row: row}}, nil
	}
}
