package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
)

// StockReconciler compares stock quantities with the movement ledger.
type StockReconciler interface {
	Reconcile(ctx context.Context, workspaceID string) ([]inventory.Mismatch, error)
}

// StockReconcileJob logs products whose stock drifted from the ledger.
type StockReconcileJob struct {
	Stock       StockReconciler
	WorkspaceID string
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewStockReconcileJob initialises the stock:reconcile handler. workspaceID
// is used when the payload does not name one.
func NewStockReconcileJob(stock StockReconciler, workspaceID string, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{Stock: stock, WorkspaceID: workspaceID, Logger: logger, Metrics: metrics}
}

// Handle runs the reconcile and reports mismatches. Mismatches are findings,
// not job failures.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Stock == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	var payload StockReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	workspace := payload.WorkspaceID
	if workspace == "" {
		workspace = j.WorkspaceID
	}
	if workspace == "" {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskStockReconcile)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerOr(j.Logger).With(slog.String("job", TaskStockReconcile), slog.String("workspace_id", workspace))
	mismatches, err := j.Stock.Reconcile(ctx, workspace)
	if err != nil {
		logger.Error("reconcile failed", slog.Any("error", err))
		return err
	}
	for _, m := range mismatches {
		logger.Warn("stock ledger mismatch",
			slog.String("product_id", m.ProductID),
			slog.String("name", m.Name),
			slog.Int("recorded", m.Recorded),
			slog.Int("expected", m.Expected))
	}
	j.Metrics.AddReconcileMismatches(workspace, len(mismatches))
	logger.Info("stock reconcile finished", slog.Int("mismatches", len(mismatches)))
	return nil
}
