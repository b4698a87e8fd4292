package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/syncer"
)

// SyncRunner runs one sync cycle.
type SyncRunner interface {
	SyncNow(ctx context.Context, trigger syncer.Trigger) (syncer.Event, error)
}

// SyncRunJob runs a sync cycle on request.
type SyncRunJob struct {
	Engine  SyncRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSyncRunJob initialises the sync:run handler.
func NewSyncRunJob(engine SyncRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *SyncRunJob {
	return &SyncRunJob{Engine: engine, Logger: logger, Metrics: metrics}
}

// Handle runs the cycle. A cycle already in progress satisfies the request.
func (j *SyncRunJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Engine == nil {
		return errors.New("sync run: handler not configured")
	}
	var payload SyncRunPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.Metrics.Track(TaskSyncRun)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerOr(j.Logger).With(slog.String("job", TaskSyncRun), slog.String("requested_by", payload.RequestedBy))
	ev, err := j.Engine.SyncNow(ctx, syncer.TriggerJob)
	if errors.Is(err, syncer.ErrSyncInProgress) {
		logger.Info("sync already running, request dropped")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("sync run finished", slog.Int("pulled", ev.Pulled), slog.Int("pushed", ev.Pushed))
	return nil
}

func loggerOr(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
