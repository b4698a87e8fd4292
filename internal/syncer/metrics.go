package syncer

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for sync cycles. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	cycles   *prometheus.CounterVec
	duration prometheus.Histogram
	pushed   *prometheus.CounterVec
	pulled   *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the sync collectors. A nil registerer uses the
// default Prometheus registerer once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sync_cycles_total",
			Help: "Sync cycles partitioned by trigger and outcome.",
		}, []string{"trigger", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_sync_cycle_duration_seconds",
			Help:    "Duration of completed sync cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		pushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sync_pushed_records_total",
			Help: "Local records pushed to the remote store.",
		}, []string{"collection"}),
		pulled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sync_pulled_records_total",
			Help: "Remote rows stored locally.",
		}, []string{"collection"}),
	}
	registerer.MustRegister(m.cycles, m.duration, m.pushed, m.pulled)
	return m
}

func (m *Metrics) cycle(trigger Trigger, status CycleStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(string(trigger), string(status)).Inc()
	if status != CycleSkipped {
		m.duration.Observe(d.Seconds())
	}
}

func (m *Metrics) addPushed(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pushed.WithLabelValues(collection).Add(float64(n))
}

func (m *Metrics) addPulled(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pulled.WithLabelValues(collection).Add(float64(n))
}
