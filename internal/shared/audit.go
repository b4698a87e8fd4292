package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// AuditCollection holds audit trail documents.
const AuditCollection = "audit_logs"

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	ActorID     string         `json:"actor_id,omitempty"`
	Action      string         `json:"action"`
	Entity      string         `json:"entity"`
	EntityID    string         `json:"entity_id"`
	Meta        map[string]any `json:"meta,omitempty"`
	At          time.Time      `json:"at"`
}

// AuditLogger writes records into the audit_logs collection.
type AuditLogger struct {
	store docstore.Store
	now   func() time.Time
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(store docstore.Store) *AuditLogger {
	return &AuditLogger{store: store, now: time.Now}
}

// Record persists the log entry in its own transaction. Call it after the
// audited transaction has committed.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.store == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.At.IsZero() {
		log.At = l.now().UTC()
	}
	return l.store.WithTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return docstore.Insert(ctx, tx, AuditCollection, log.ID, log)
	})
}

// List returns the audit trail of one entity in insertion order.
func (l *AuditLogger) List(ctx context.Context, entity, entityID string) ([]AuditLog, error) {
	var out []AuditLog
	err := l.store.View(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		out, err = docstore.Find[AuditLog](ctx, tx, AuditCollection,
			docstore.Where("entity", docstore.OpEq, entity).And("entity_id", docstore.OpEq, entityID))
		return err
	})
	return out, err
}
