package docstore

import (
	"time"

	"github.com/google/uuid"
)

// SyncState tracks a record's position relative to the remote store.
type SyncState string

const (
	// SyncClean means the local record matches the last known remote state.
	SyncClean SyncState = "clean"
	// SyncDirty means the record has local changes waiting to be pushed.
	SyncDirty SyncState = "dirty"
	// SyncInFlight means a push for the record is in progress.
	SyncInFlight SyncState = "in_flight"
)

// Record fields shared by every syncable document. Embed it untagged so the
// fields flatten into the document.
type Record struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SyncState   SyncState  `json:"sync_state"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
	Deleted     bool       `json:"deleted"`
}

// NewRecord returns a dirty record with a fresh id.
func NewRecord(workspaceID string, now time.Time) Record {
	now = now.UTC()
	return Record{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		CreatedAt:   now,
		UpdatedAt:   now,
		SyncState:   SyncDirty,
	}
}

// MarkDirty stamps a local mutation.
func (r *Record) MarkDirty(now time.Time) {
	r.UpdatedAt = now.UTC()
	r.SyncState = SyncDirty
}

// SoftDelete hides the record from queries while keeping it for sync.
func (r *Record) SoftDelete(now time.Time) {
	r.Deleted = true
	r.MarkDirty(now)
}

// Live reports whether the record is visible to service-level queries.
func (r Record) Live() bool {
	return !r.Deleted
}

// Common field names used in filters.
const (
	FieldID          = "id"
	FieldWorkspaceID = "workspace_id"
	FieldSyncState   = "sync_state"
	FieldDeleted     = "deleted"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
)

// InWorkspace filters live documents of one workspace.
func InWorkspace(workspaceID string) Filter {
	return Where(FieldWorkspaceID, OpEq, workspaceID).And(FieldDeleted, OpEq, false)
}
