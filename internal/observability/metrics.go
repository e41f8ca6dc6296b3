package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streamflow"

// Metrics holds the Prometheus counters, histograms, and gauges for the engine.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  *prometheus.CounterVec // labels: kind
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Computation metrics.
	Computations        *prometheus.CounterVec   // labels: kind
	ComputationDuration *prometheus.HistogramVec // labels: kind
	DischargeGrades     *prometheus.CounterVec   // labels: grade={Excellent,Good,Fair,Poor}
	RatingPoints        *prometheus.CounterVec   // labels: quality={good,extrapolated,suspect}

	// Rating-curve registry metrics.
	CurveCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total requests read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total results written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Requests that could not be computed, by request kind.",
		}, []string{"kind"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-compute-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		Computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computations_total",
			Help:      "Completed computations by request kind.",
		}, []string{"kind"}),
		ComputationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "computation_duration_seconds",
			Help:      "Time spent computing one request, by kind.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),
		DischargeGrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discharge_grades_total",
			Help:      "Reduced gaugings by uncertainty grade.",
		}, []string{"grade"}),
		RatingPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_points_total",
			Help:      "Discharge values generated from stage, by quality flag.",
		}, []string{"quality"}),
		CurveCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "curve_cache_total",
			Help:      "Rating-curve cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.Computations,
		m.ComputationDuration,
		m.DischargeGrades,
		m.RatingPoints,
		m.CurveCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_consumed_total"}),
		MessagesProduced:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_produced_total"}),
		TransformErrors:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "transform_errors_total"}, []string{"kind"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_processing_duration_seconds"}),
		Computations:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "computations_total"}, []string{"kind"}),
		ComputationDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "computation_duration_seconds"}, []string{"kind"}),
		DischargeGrades:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "discharge_grades_total"}, []string{"grade"}),
		RatingPoints:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "rating_points_total"}, []string{"quality"}),
		CurveCache:              prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "curve_cache_total"}, []string{"result"}),
	}
}
