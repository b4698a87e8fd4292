package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("sync:run").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("sync:run").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sync:run", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sync:run", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("sync:run")))
}

func TestReconcileMismatchesIgnoresZero(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddReconcileMismatches("ws", 0)
	m.AddReconcileMismatches("ws", 2)
	require.Equal(t, 2.0, testutil.ToFloat64(m.mismatches.WithLabelValues("ws")))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	m.AddReconcileMismatches("ws", 1)
}
