package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/jobs"
)

// Enqueuer submits terminal jobs.
type Enqueuer interface {
	EnqueueSyncRun(ctx context.Context, payload jobs.SyncRunPayload) (*asynq.TaskInfo, error)
	EnqueueGiftCardsBulk(ctx context.Context, payload jobs.GiftCardsBulkPayload) (*asynq.TaskInfo, error)
	EnqueueStockReconcile(ctx context.Context, payload jobs.StockReconcilePayload) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	enqueuer  Enqueuer
	inspector jobs.QueueInspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers against the given redis.
func NewJobsCLI(opts asynq.RedisClientOpt) (*JobsCLI, error) {
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{enqueuer: client, inspector: inspector, closers: []io.Closer{client, inspector}}, nil
}

// NewJobsCLIWith builds the helpers around existing collaborators.
func NewJobsCLIWith(enqueuer Enqueuer, inspector jobs.QueueInspector) *JobsCLI {
	return &JobsCLI{enqueuer: enqueuer, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	for _, closer := range c.closers {
		if closeErr := closer.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerOptions defines the flags of jobs trigger.
type TriggerOptions struct {
	WorkspaceID string
	Count       int
	Amount      string
	IssuedBy    string
	Stdout      io.Writer
	Stderr      io.Writer
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.enqueuer == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskSyncRun:
		return c.enqueuer.EnqueueSyncRun(ctx, jobs.SyncRunPayload{RequestedBy: "posctl"})
	case jobs.TaskStockReconcile:
		return c.enqueuer.EnqueueStockReconcile(ctx, jobs.StockReconcilePayload{WorkspaceID: opts.WorkspaceID})
	case jobs.TaskGiftCardsBulkGenerate:
		if opts.Count <= 0 {
			return nil, errors.New("jobs cli: --count must be positive")
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(opts.Amount))
		if err != nil || !amount.IsPositive() {
			return nil, fmt.Errorf("jobs cli: invalid --amount %q", opts.Amount)
		}
		if opts.WorkspaceID == "" {
			return nil, errors.New("jobs cli: --workspace is required")
		}
		return c.enqueuer.EnqueueGiftCardsBulk(ctx, jobs.GiftCardsBulkPayload{
			WorkspaceID: opts.WorkspaceID,
			Count:       opts.Count,
			Amount:      amount,
			IssuedBy:    opts.IssuedBy,
		})
	}
	return nil, fmt.Errorf("jobs cli: unsupported job %s (known: %s)", name, strings.Join(jobs.TaskTypes, ", "))
}

// TriggerCommand runs jobs trigger and returns the exit code.
func (c *JobsCLI) TriggerCommand(ctx context.Context, name string, opts TriggerOptions) int {
	opts.Stdout, opts.Stderr = writers(opts.Stdout, opts.Stderr)
	info, err := c.Trigger(ctx, name, opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Failed = info.Failed
	}
	return stats, nil
}

// StatsOptions defines the flags of jobs stats.
type StatsOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// StatsCommand prints queue statistics and returns the exit code.
func (c *JobsCLI) StatsCommand(opts StatsOptions) int {
	opts.Stdout, opts.Stderr = writers(opts.Stdout, opts.Stderr)
	stats, err := c.InspectQueue()
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "queue %s: pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
	return 0
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
