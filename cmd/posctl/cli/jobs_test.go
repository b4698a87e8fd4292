package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/jobs"
)

type stubEnqueuer struct {
	bulk      jobs.GiftCardsBulkPayload
	reconcile jobs.StockReconcilePayload
	syncRuns  int
}

func (s *stubEnqueuer) EnqueueSyncRun(_ context.Context, payload jobs.SyncRunPayload) (*asynq.TaskInfo, error) {
	s.syncRuns++
	return &asynq.TaskInfo{ID: "t1", Type: jobs.TaskSyncRun, Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueGiftCardsBulk(_ context.Context, payload jobs.GiftCardsBulkPayload) (*asynq.TaskInfo, error) {
	s.bulk = payload
	return &asynq.TaskInfo{ID: "t2", Type: jobs.TaskGiftCardsBulkGenerate, Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueStockReconcile(_ context.Context, payload jobs.StockReconcilePayload) (*asynq.TaskInfo, error) {
	s.reconcile = payload
	return &asynq.TaskInfo{ID: "t3", Type: jobs.TaskStockReconcile, Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestTriggerCommandEnqueuesKnownJobs(t *testing.T) {
	enq := &stubEnqueuer{}
	c := NewJobsCLIWith(enq, nil)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	code := c.TriggerCommand(context.Background(), jobs.TaskSyncRun, TriggerOptions{Stdout: stdout, Stderr: stderr})
	require.Zero(t, code)
	require.Equal(t, 1, enq.syncRuns)
	require.Contains(t, stdout.String(), "enqueued sync:run id=t1")

	code = c.TriggerCommand(context.Background(), jobs.TaskGiftCardsBulkGenerate, TriggerOptions{
		WorkspaceID: "ws", Count: 5, Amount: "50.00", IssuedBy: "ops", Stdout: stdout, Stderr: stderr,
	})
	require.Zero(t, code)
	require.Equal(t, 5, enq.bulk.Count)
	require.Equal(t, "50", enq.bulk.Amount.String())

	code = c.TriggerCommand(context.Background(), jobs.TaskStockReconcile, TriggerOptions{WorkspaceID: "ws", Stdout: stdout, Stderr: stderr})
	require.Zero(t, code)
	require.Equal(t, "ws", enq.reconcile.WorkspaceID)
	require.Empty(t, stderr.String())
}

func TestTriggerCommandRejectsBadInput(t *testing.T) {
	c := NewJobsCLIWith(&stubEnqueuer{}, nil)
	cases := map[string]struct {
		name string
		opts TriggerOptions
	}{
		"unknown job":  {name: "mail:send"},
		"no count":     {name: jobs.TaskGiftCardsBulkGenerate, opts: TriggerOptions{WorkspaceID: "ws", Amount: "10"}},
		"bad amount":   {name: jobs.TaskGiftCardsBulkGenerate, opts: TriggerOptions{WorkspaceID: "ws", Count: 1, Amount: "ten"}},
		"zero amount":  {name: jobs.TaskGiftCardsBulkGenerate, opts: TriggerOptions{WorkspaceID: "ws", Count: 1, Amount: "0"}},
		"no workspace": {name: jobs.TaskGiftCardsBulkGenerate, opts: TriggerOptions{Count: 1, Amount: "10"}},
	}
	for label, tc := range cases {
		t.Run(label, func(t *testing.T) {
			stderr := new(bytes.Buffer)
			tc.opts.Stdout = new(bytes.Buffer)
			tc.opts.Stderr = stderr
			require.Equal(t, 1, c.TriggerCommand(context.Background(), tc.name, tc.opts))
			require.Contains(t, stderr.String(), "jobs trigger:")
		})
	}
}

func TestStatsCommand(t *testing.T) {
	c := NewJobsCLIWith(nil, stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Retry: 1}})
	stdout := new(bytes.Buffer)
	require.Zero(t, c.StatsCommand(StatsOptions{JSONOutput: true, Stdout: stdout}))

	var stats QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Equal(t, 2, stats.Pending)
	require.Equal(t, 1, stats.Retry)

	stdout.Reset()
	require.Zero(t, c.StatsCommand(StatsOptions{Stdout: stdout}))
	require.Contains(t, stdout.String(), "pending=2")

	broken := NewJobsCLIWith(nil, stubInspector{err: errors.New("dial tcp")})
	stderr := new(bytes.Buffer)
	require.Equal(t, 1, broken.StatsCommand(StatsOptions{Stdout: stdout, Stderr: stderr}))
	require.Contains(t, stderr.String(), "dial tcp")
}
