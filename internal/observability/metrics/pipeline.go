package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PipelineMetrics struct {
	registry *prometheus.Registry

	fileTotal     *prometheus.CounterVec
	fileDuration  *prometheus.HistogramVec
	filesInFlight prometheus.Gauge
	blockedGroups *prometheus.GaugeVec
	batchTotal    *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	fileTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clindoc",
			Subsystem: "pipeline",
			Name:      "file_process_total",
			Help:      "Total processed files by terminal status.",
		},
		[]string{"service", "status"},
	)
	fileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clindoc",
			Subsystem: "pipeline",
			Name:      "file_process_duration_seconds",
			Help:      "Per-file analysis duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	filesInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clindoc",
			Subsystem: "pipeline",
			Name:      "files_in_flight",
			Help:      "Number of files currently being analyzed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	blockedGroups := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clindoc",
			Subsystem: "pipeline",
			Name:      "blocked_groups",
			Help:      "Report groups currently awaiting human adjudication.",
		},
		[]string{"service"},
	)
	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clindoc",
			Subsystem: "pipeline",
			Name:      "batch_total",
			Help:      "Total batch runs by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(fileTotal, fileDuration, filesInFlight, blockedGroups, batchTotal)

	return &PipelineMetrics{
		registry:      registry,
		fileTotal:     fileTotal,
		fileDuration:  fileDuration,
		filesInFlight: filesInFlight,
		blockedGroups: blockedGroups,
		batchTotal:    batchTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartFile() {
	m.filesInFlight.Inc()
}

func (m *PipelineMetrics) FinishFile(service string, duration time.Duration, err error) {
	m.filesInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.fileTotal.WithLabelValues(service, status).Inc()
	m.fileDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) SetBlockedGroups(service string, count int) {
	m.blockedGroups.WithLabelValues(service).Set(float64(count))
}

func (m *PipelineMetrics) FinishBatch(service, outcome string) {
	m.batchTotal.WithLabelValues(service, outcome).Inc()
}
