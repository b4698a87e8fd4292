package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/giftcards"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/internal/syncer"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubEngine struct {
	calls   int
	trigger syncer.Trigger
	err     error
}

func (s *stubEngine) SyncNow(_ context.Context, trigger syncer.Trigger) (syncer.Event, error) {
	s.calls++
	s.trigger = trigger
	return syncer.Event{Trigger: trigger, Pulled: 1}, s.err
}

type stubIssuer struct {
	input giftcards.BulkInput
	cards []giftcards.GiftCard
	err   error
}

func (s *stubIssuer) BulkGenerateGiftCards(_ context.Context, input giftcards.BulkInput) ([]giftcards.GiftCard, error) {
	s.input = input
	return s.cards, s.err
}

type stubReconciler struct {
	workspace  string
	mismatches []inventory.Mismatch
	err        error
}

func (s *stubReconciler) Reconcile(_ context.Context, workspaceID string) ([]inventory.Mismatch, error) {
	s.workspace = workspaceID
	return s.mismatches, s.err
}

func TestSyncRunJobUsesJobTrigger(t *testing.T) {
	engine := &stubEngine{}
	job := NewSyncRunJob(engine, discard, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewSyncRunTask(SyncRunPayload{RequestedBy: "posctl"})
	require.NoError(t, err)
	require.Equal(t, TaskSyncRun, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, engine.calls)
	require.Equal(t, syncer.TriggerJob, engine.trigger)
}

func TestSyncRunJobDropsWhenBusy(t *testing.T) {
	engine := &stubEngine{err: syncer.ErrSyncInProgress}
	job := NewSyncRunJob(engine, discard, nil)
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskSyncRun, nil)))
}

func TestSyncRunJobReturnsCycleFailure(t *testing.T) {
	boom := shared.SyncFailure("syncer.push", errors.New("remote down"))
	job := NewSyncRunJob(&stubEngine{err: boom}, discard, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskSyncRun, nil))
	require.ErrorIs(t, err, shared.ErrSync)
}

func TestGiftCardsBulkJobPassesPayload(t *testing.T) {
	issuer := &stubIssuer{cards: make([]giftcards.GiftCard, 3)}
	job := NewGiftCardsBulkJob(issuer, discard, nil)

	task, err := NewGiftCardsBulkTask(GiftCardsBulkPayload{
		WorkspaceID: "ws",
		Count:       3,
		Amount:      decimal.RequireFromString("25.00"),
		IssuedBy:    "manager",
	})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "ws", issuer.input.WorkspaceID)
	require.Equal(t, 3, issuer.input.Count)
	require.True(t, issuer.input.Amount.Equal(decimal.NewFromInt(25)))
	require.Equal(t, "manager", issuer.input.IssuedBy)
}

func TestGiftCardsBulkJobSkipsRetryAfterPartialBatch(t *testing.T) {
	issuer := &stubIssuer{cards: make([]giftcards.GiftCard, 1), err: errors.New("store closed")}
	job := NewGiftCardsBulkJob(issuer, discard, nil)
	task, err := NewGiftCardsBulkTask(GiftCardsBulkPayload{WorkspaceID: "ws", Count: 2, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestGiftCardsBulkJobRetriesCleanFailure(t *testing.T) {
	boom := errors.New("store closed")
	job := NewGiftCardsBulkJob(&stubIssuer{err: boom}, discard, nil)
	task, err := NewGiftCardsBulkTask(GiftCardsBulkPayload{WorkspaceID: "ws", Count: 2, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestGiftCardsBulkJobRejectsBadPayload(t *testing.T) {
	job := NewGiftCardsBulkJob(&stubIssuer{}, discard, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskGiftCardsBulkGenerate, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestStockReconcileJobFallsBackToDefaultWorkspace(t *testing.T) {
	stock := &stubReconciler{mismatches: []inventory.Mismatch{{ProductID: "p1", Name: "Tea", Recorded: 4, Expected: 5}}}
	job := NewStockReconcileJob(stock, "ws-default", discard, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewStockReconcileTask(StockReconcilePayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "ws-default", stock.workspace)

	task, err = NewStockReconcileTask(StockReconcilePayload{WorkspaceID: "ws-2"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "ws-2", stock.workspace)
}

func TestStockReconcileJobWithoutWorkspaceSkips(t *testing.T) {
	job := NewStockReconcileJob(&stubReconciler{}, "", discard, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskStockReconcile, nil))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlersAndNightlyReconcile(t *testing.T) {
	handlers := Handlers(NewSyncRunJob(&stubEngine{}, discard, nil), nil, NewStockReconcileJob(&stubReconciler{}, "ws", discard, nil))
	require.Len(t, handlers, 2)
	require.Equal(t, TaskSyncRun, handlers[0].Type)
	require.Equal(t, TaskStockReconcile, handlers[1].Type)

	cron, err := NightlyReconcile("ws")
	require.NoError(t, err)
	require.Equal(t, NightlyReconcileSpec, cron.Spec)
	require.Equal(t, TaskStockReconcile, cron.Task.Type())
	var payload StockReconcilePayload
	require.NoError(t, json.Unmarshal(cron.Task.Payload(), &payload))
	require.Equal(t, "ws", payload.WorkspaceID)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthEndpoint(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{name: "disabled", inspector: nil, status: http.StatusOK},
		{name: "queue", inspector: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, status: http.StatusOK, pending: 4},
		{name: "redis down", inspector: stubInspector{err: errors.New("dial tcp")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, discard).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			require.Equal(t, tc.pending, body.Pending)
			require.Equal(t, tc.inspector != nil, body.Enabled)
		})
	}
}
