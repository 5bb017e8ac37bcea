package orchestrate

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report scheduler activity.
type Metrics struct {
	tasksTotal    *prometheus.CounterVec
	tasksActive   prometheus.Gauge
	batchDuration prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when multiple schedulers exist (unit
// tests, one scheduler per controller).
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Registration errors panic, mirroring promauto semantics, except for
// already-registered collectors which are reused.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	tasksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hive",
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Task state transitions observed by the mock scheduler.",
		},
		[]string{"status"},
	)
	tasksActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hive",
			Subsystem: "scheduler",
			Name:      "tasks_active",
			Help:      "Tasks belonging to in-flight orchestration runs.",
		},
	)
	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hive",
			Subsystem: "scheduler",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of each sequential task batch.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	for _, collector := range []prometheus.Collector{tasksTotal, tasksActive, batchDuration} {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector.(type) {
				case *prometheus.CounterVec:
					tasksTotal = already.ExistingCollector.(*prometheus.CounterVec)
				case prometheus.Histogram:
					batchDuration = already.ExistingCollector.(prometheus.Histogram)
				case prometheus.Gauge:
					tasksActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		tasksTotal:    tasksTotal,
		tasksActive:   tasksActive,
		batchDuration: batchDuration,
	}
}

// IncTask records one task transition into the given status.
func (m *Metrics) IncTask(status string) {
	if m == nil || m.tasksTotal == nil {
		return
	}
	m.tasksTotal.WithLabelValues(status).Inc()
}

// AddActive adjusts the active task gauge by delta.
func (m *Metrics) AddActive(delta int) {
	if m == nil || m.tasksActive == nil {
		return
	}
	m.tasksActive.Add(float64(delta))
}

// ObserveBatchDuration records the wall time of one batch.
func (m *Metrics) ObserveBatchDuration(d time.Duration) {
	if m == nil || m.batchDuration == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}
