package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

var errPkg = errors.New("layaway: deposit below minimum")

func TestErrorMatchesKindAndCause(t *testing.T) {
	err := Validation("layaway.Create", errPkg, "deposit %s below %s", "5.00", "20.00")
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, errPkg)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Equal(t, KindValidation, KindOf(err))
	require.Equal(t, "layaway.Create: deposit 5.00 below 20.00", err.Error())
	require.Equal(t, "deposit 5.00 below 20.00", UserSafeMessage(err))

	wrapped := SyncFailure("syncer.push", errors.New("connection refused"))
	require.ErrorIs(t, wrapped, ErrSync)
	require.Equal(t, "syncer.push: connection refused", wrapped.Error())
	require.Equal(t, "connection refused", UserSafeMessage(wrapped))

	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
	require.Equal(t, "internal error", UserSafeMessage(errors.New("plain")))
	require.Empty(t, UserSafeMessage(nil))
	require.ErrorIs(t, NotFound("op", nil, "x"), ErrNotFound)
	require.ErrorIs(t, Conflict("op", nil, "x"), ErrStateConflict)
}

func TestAuditLoggerRecordsAndLists(t *testing.T) {
	ctx := context.Background()
	logger := NewAuditLogger(docstore.NewMemory())

	require.Error(t, logger.Record(ctx, AuditLog{Action: "redeem"}))
	require.NoError(t, logger.Record(ctx, AuditLog{WorkspaceID: "ws", Action: "issue", Entity: "gift_card", EntityID: "GC1"}))
	require.NoError(t, logger.Record(ctx, AuditLog{WorkspaceID: "ws", Action: "redeem", Entity: "gift_card", EntityID: "GC1", Meta: map[string]any{"amount": "5.00"}}))
	require.NoError(t, logger.Record(ctx, AuditLog{WorkspaceID: "ws", Action: "issue", Entity: "gift_card", EntityID: "GC2"}))

	logs, err := logger.List(ctx, "gift_card", "GC1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "issue", logs[0].Action)
	require.Equal(t, "redeem", logs[1].Action)
	require.NotEmpty(t, logs[0].ID)
	require.False(t, logs[0].At.IsZero())
}

func TestIdempotencyKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(docstore.NewMemory())

	require.NoError(t, store.CheckAndInsert(ctx, "k1", "sales"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "k1", "sales"), ErrIdempotencyConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "layaway"))

	require.NoError(t, store.Delete(ctx, "k1", "sales"))
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "sales"))
	require.NoError(t, store.Delete(ctx, "unknown", "sales"))

	require.Error(t, store.CheckAndInsert(ctx, "", "sales"))
	require.Error(t, store.CheckAndInsert(ctx, "k2", ""))
}
