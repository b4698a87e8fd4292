package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// MetaCollection holds local-only sync bookkeeping.
const MetaCollection = "sync_meta"

// WatermarkKey is the id of the last successful pull timestamp.
const WatermarkKey = "last_sync_timestamp"

type metaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func readWatermark(ctx context.Context, store docstore.Store) (time.Time, error) {
	var entry metaEntry
	err := store.View(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		entry, err = docstore.Get[metaEntry](ctx, tx, MetaCollection, WatermarkKey)
		return err
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("syncer: read watermark: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, entry.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("syncer: parse watermark %q: %w", entry.Value, err)
	}
	return ts, nil
}

func writeWatermark(ctx context.Context, store docstore.Store, ts time.Time) error {
	return store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return docstore.Save(ctx, tx, MetaCollection, WatermarkKey, metaEntry{
			Key:   WatermarkKey,
			Value: ts.UTC().Format(time.RFC3339Nano),
		})
	})
}

// Watermark returns the last pull timestamp, zero before the first pull.
func (e *Engine) Watermark(ctx context.Context) (time.Time, error) {
	return readWatermark(ctx, e.store)
}
