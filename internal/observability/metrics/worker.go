package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	rowsLoaded      *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	stepOutcomes    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dsa",
			Subsystem: "worker",
			Name:      "dataset_process_total",
			Help:      "Total processed datasets by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dsa",
			Subsystem: "worker",
			Name:      "dataset_process_duration_seconds",
			Help:      "Dataset ingestion duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dsa",
			Subsystem: "worker",
			Name:      "dataset_process_in_flight",
			Help:      "Number of in-flight dataset ingestion jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dsa",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between dataset upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	rowsLoaded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dsa",
			Subsystem: "worker",
			Name:      "rows_loaded_total",
			Help:      "Rows materialized into raw dataset tables.",
		},
		[]string{"service"},
	)
	duplicates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dsa",
			Subsystem: "worker",
			Name:      "duplicate_rows_removed_total",
			Help:      "Exact duplicate rows dropped during cleaning.",
		},
		[]string{"service"},
	)
	stepOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dsa",
			Subsystem: "worker",
			Name:      "optional_steps_total",
			Help:      "Index and aggregation builds by outcome.",
		},
		[]string{"service", "step", "outcome"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, rowsLoaded, duplicates, stepOutcomes)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
		rowsLoaded:      rowsLoaded,
		duplicates:      duplicates,
		stepOutcomes:    stepOutcomes,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDataset() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDataset() {
	m.processInFlight.Dec()
}

// ObserveJob implements ports.JobObserver.
func (m *WorkerMetrics) ObserveJob(report domain.JobReport, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())

	if err != nil {
		return
	}
	m.rowsLoaded.WithLabelValues(m.service).Add(float64(report.RowsLoaded))
	m.duplicates.WithLabelValues(m.service).Add(float64(report.Cleaning.DuplicatesRemoved))
	for _, r := range report.Indexes {
		m.stepOutcomes.WithLabelValues(m.service, "index", string(r.Outcome)).Inc()
	}
	for _, r := range report.Aggregations {
		m.stepOutcomes.WithLabelValues(m.service, "aggregation", string(r.Outcome)).Inc()
	}
}

// ObserveQueueLag implements ports.JobObserver.
func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}
