package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_poller"

// Metrics holds the Prometheus collectors for the ingestion pipeline.
type Metrics struct {
	FetchResults      *prometheus.CounterVec // labels: result={success,cancelled,provider,malformed,missing_readings,transport,storage,other}
	RecordsStored     prometheus.Counter
	CyclesTotal       *prometheus.CounterVec // labels: outcome={completed,cancelled}
	CycleDuration     prometheus.Histogram
	CyclesSkipped     prometheus.Counter
	SchedulerRunning  prometheus.Gauge
	LocationsRegistry prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "Per-location ingestion outcomes by result.",
		}, []string{"result"}),
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Total weather records appended to the store.",
		}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Ingestion cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full pass over all registered locations.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Scheduler ticks skipped because the previous cycle was still running.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 while the scheduler is running, 0 otherwise.",
		}),
		LocationsRegistry: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_locations",
			Help:      "Number of locations polled each cycle.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchResults,
		m.RecordsStored,
		m.CyclesTotal,
		m.CycleDuration,
		m.CyclesSkipped,
		m.SchedulerRunning,
		m.LocationsRegistry,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry so
// tests can build as many as they need.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
