package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSyncRun runs one sync cycle.
	TaskSyncRun = "sync:run"
	// TaskGiftCardsBulkGenerate issues a batch of gift cards.
	TaskGiftCardsBulkGenerate = "giftcards:bulk_generate"
	// TaskStockReconcile checks stock quantities against the movement ledger.
	TaskStockReconcile = "stock:reconcile"
)

// TaskTypes lists every task the worker handles.
var TaskTypes = []string{TaskSyncRun, TaskGiftCardsBulkGenerate, TaskStockReconcile}

// SyncRunPayload carries who asked for the cycle.
type SyncRunPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// GiftCardsBulkPayload describes a batch of cards to issue.
type GiftCardsBulkPayload struct {
	WorkspaceID string          `json:"workspace_id"`
	Count       int             `json:"count"`
	Amount      decimal.Decimal `json:"amount"`
	IssuedBy    string          `json:"issued_by,omitempty"`
}

// StockReconcilePayload carries scheduling metadata.
type StockReconcilePayload struct {
	WorkspaceID  string    `json:"workspace_id,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSyncRunTask constructs a sync:run task. A failed cycle is retried at
// most twice; the engine timer covers the rest.
func NewSyncRunTask(payload SyncRunPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncRun, body, asynq.Queue(QueueDefault), asynq.MaxRetry(2)), nil
}

// NewGiftCardsBulkTask constructs a giftcards:bulk_generate task.
func NewGiftCardsBulkTask(payload GiftCardsBulkPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGiftCardsBulkGenerate, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewStockReconcileTask constructs a stock:reconcile task.
func NewStockReconcileTask(payload StockReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, body, asynq.Queue(QueueDefault)), nil
}
