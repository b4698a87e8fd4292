package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type syncHeader struct {
	ID        string             `json:"id"`
	SyncState docstore.SyncState `json:"sync_state"`
}

func headerOf(raw json.RawMessage) (syncHeader, error) {
	var h syncHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return h, fmt.Errorf("syncer: decode header: %w", err)
	}
	return h, nil
}

// call bounds one remote request by the configured timeout.
func (e *Engine) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return fn(ctx)
}

// pull stores every remote row changed since the watermark, remote wins.
// The watermark moves only when rows arrived.
func (e *Engine) pull(ctx context.Context) (int, error) {
	since, err := readWatermark(ctx, e.store)
	if err != nil {
		return 0, err
	}
	latest := since
	total := 0
	for _, spec := range e.cfg.Pull {
		collection := spec.Collection
		var rows []map[string]any
		err := e.call(ctx, func(ctx context.Context) error {
			var err error
			rows, err = e.remote.Select(ctx, collection, since)
			return err
		})
		if err != nil {
			return total, shared.SyncFailure("syncer.pull", fmt.Errorf("select %s: %w", collection, err))
		}
		if len(rows) == 0 {
			continue
		}
		stamp := e.now().UTC()
		err = e.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
			for _, row := range rows {
				id, _ := row[docstore.FieldID].(string)
				if id == "" {
					return fmt.Errorf("syncer: %s row without id", collection)
				}
				if ts, ok := parseStamp(row[docstore.FieldUpdatedAt]); ok && ts.After(latest) {
					latest = ts
				}
				row[docstore.FieldSyncState] = docstore.SyncClean
				row["synced_at"] = stamp
				if _, ok := row[docstore.FieldDeleted]; !ok {
					row[docstore.FieldDeleted] = false
				}
				if spec.Apply != nil {
					if err := spec.Apply(ctx, tx, row, stamp); err != nil {
						return fmt.Errorf("syncer: apply %s/%s: %w", collection, id, err)
					}
					continue
				}
				if err := PutRow(ctx, tx, collection, id, row); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("store pulled %s: %w", collection, err)
		}
		total += len(rows)
		e.metrics.addPulled(collection, len(rows))
	}
	if total > 0 && latest.After(since) {
		if err := writeWatermark(ctx, e.store, latest); err != nil {
			return total, err
		}
	}
	return total, nil
}

// PutRow upserts a pulled row as-is.
func PutRow(ctx context.Context, tx docstore.Tx, collection, id string, row map[string]any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("syncer: encode %s/%s: %w", collection, id, err)
	}
	return tx.Put(ctx, collection, id, raw)
}

func parseStamp(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// push sends dirty records collection by collection in plan order. The first
// record that still fails after all attempts aborts the rest of the cycle.
func (e *Engine) push(ctx context.Context) (int, error) {
	pushed := 0
	for _, spec := range e.cfg.Push {
		var ids []string
		err := e.store.View(ctx, func(ctx context.Context, tx docstore.Tx) error {
			rows, err := tx.Find(ctx, spec.Collection, docstore.Where(docstore.FieldSyncState, docstore.OpEq, string(docstore.SyncDirty)))
			if err != nil {
				return err
			}
			for _, raw := range rows {
				h, err := headerOf(raw)
				if err != nil {
					return err
				}
				ids = append(ids, h.ID)
			}
			return nil
		})
		if err != nil {
			return pushed, fmt.Errorf("list dirty %s: %w", spec.Collection, err)
		}
		for _, id := range ids {
			sent, err := e.pushRecord(ctx, spec, id)
			if err != nil {
				return pushed, err
			}
			if sent {
				pushed++
				e.metrics.addPushed(spec.Collection, 1)
			}
		}
	}
	return pushed, nil
}

func (e *Engine) pushRecord(ctx context.Context, spec PushSpec, id string) (bool, error) {
	raw, err := e.claim(ctx, spec.Collection, id)
	if err != nil || raw == nil {
		return false, err
	}
	writes, err := spec.Split(raw)
	if err == nil {
		err = e.send(ctx, writes)
	}
	if err != nil {
		if relErr := e.settle(context.WithoutCancel(ctx), spec.Collection, id, docstore.SyncDirty); relErr != nil {
			e.logger.Error("release push claim", slog.String("collection", spec.Collection), slog.String("id", id), slog.Any("error", relErr))
		}
		return false, shared.SyncFailure("syncer.push", fmt.Errorf("%s/%s: %w", spec.Collection, id, err))
	}
	return true, e.settle(context.WithoutCancel(ctx), spec.Collection, id, docstore.SyncClean)
}

// claim moves a dirty record to in_flight and returns its body. A record that
// is no longer dirty yields nil.
func (e *Engine) claim(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := e.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		raw, err := tx.GetForUpdate(ctx, collection, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		h, err := headerOf(raw)
		if err != nil || h.SyncState != docstore.SyncDirty {
			return err
		}
		out = raw
		return tx.Update(ctx, collection, id, map[string]any{docstore.FieldSyncState: docstore.SyncInFlight})
	})
	return out, err
}

// settle finishes a claim. A record edited while in flight is dirty again and
// stays that way for the next cycle.
func (e *Engine) settle(ctx context.Context, collection, id string, to docstore.SyncState) error {
	return e.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		raw, err := tx.GetForUpdate(ctx, collection, id)
		if err != nil {
			return err
		}
		h, err := headerOf(raw)
		if err != nil || h.SyncState != docstore.SyncInFlight {
			return err
		}
		patch := map[string]any{docstore.FieldSyncState: to}
		if to == docstore.SyncClean {
			patch["synced_at"] = e.now().UTC()
		}
		return tx.Update(ctx, collection, id, patch)
	})
}

// send delivers the writes of one record, retrying the whole set with a
// linear backoff. Inserts are upserts so a repeat is harmless.
func (e *Engine) send(ctx context.Context, writes []Write) error {
	var err error
	for attempt := 1; attempt <= e.cfg.PushAttempts; attempt++ {
		if err = e.sendOnce(ctx, writes); err == nil {
			return nil
		}
		if attempt == e.cfg.PushAttempts {
			break
		}
		e.logger.Debug("push attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))
		if serr := e.sleep(ctx, time.Duration(attempt)*e.cfg.RetryBackoff); serr != nil {
			return serr
		}
	}
	return err
}

func (e *Engine) sendOnce(ctx context.Context, writes []Write) error {
	for start := 0; start < len(writes); {
		end := start + 1
		for end < len(writes) && writes[end].Collection == writes[start].Collection {
			end++
		}
		rows := make([]map[string]any, 0, end-start)
		for _, w := range writes[start:end] {
			rows = append(rows, w.Row)
		}
		collection := writes[start].Collection
		if err := e.call(ctx, func(ctx context.Context) error {
			return e.remote.Insert(ctx, collection, rows)
		}); err != nil {
			return fmt.Errorf("insert %s: %w", collection, err)
		}
		start = end
	}
	return nil
}

// resetInFlight returns claims abandoned by a crash to dirty.
func (e *Engine) resetInFlight(ctx context.Context) error {
	return e.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		for _, spec := range e.cfg.Push {
			rows, err := tx.Find(ctx, spec.Collection, docstore.Where(docstore.FieldSyncState, docstore.OpEq, string(docstore.SyncInFlight)))
			if err != nil {
				return err
			}
			for _, raw := range rows {
				h, err := headerOf(raw)
				if err != nil {
					return err
				}
				if err := tx.Update(ctx, spec.Collection, h.ID, map[string]any{docstore.FieldSyncState: docstore.SyncDirty}); err != nil {
					return err
				}
			}
			if len(rows) > 0 {
				e.logger.Info("reset in-flight records", slog.String("collection", spec.Collection), slog.Int("count", len(rows)))
			}
		}
		return nil
	})
}
