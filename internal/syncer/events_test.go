package syncer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisherPublishesEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "pos.sync")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "pos.sync")
	started := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Publish(ctx, Event{
		Trigger:    TriggerManual,
		Status:     CycleSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Pushed:     3,
	}))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	require.Equal(t, TriggerManual, got.Trigger)
	require.Equal(t, 3, got.Pushed)
	require.True(t, got.StartedAt.Equal(started))
}

func TestMetricsRecordCycles(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.cycle(TriggerTimer, CycleSucceeded, time.Second)
	m.cycle(TriggerTimer, CycleSkipped, 0)
	m.addPushed("sales", 2)
	m.addPulled("products", 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("timer", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("timer", "skipped")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.pushed.WithLabelValues("sales")))
	require.Equal(t, 0, testutil.CollectAndCount(m.pulled))

	var nilMetrics *Metrics
	nilMetrics.cycle(TriggerManual, CycleFailed, time.Second)
}
