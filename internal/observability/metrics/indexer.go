package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IndexerMetrics struct {
	registry *prometheus.Registry

	scansTotal    *prometheus.CounterVec
	scanDuration  *prometheus.HistogramVec
	scanInFlight  prometheus.Gauge
	filesTotal    *prometheus.CounterVec
	indexedChunks prometheus.Gauge
}

func NewIndexerMetrics(service string) *IndexerMetrics {
	registry := prometheus.NewRegistry()

	scansTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "index",
			Name:      "scans_total",
			Help:      "Total corpus scans by status.",
		},
		[]string{"service", "status"},
	)
	scanDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cra",
			Subsystem: "index",
			Name:      "scan_duration_seconds",
			Help:      "Corpus scan duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "status"},
	)
	scanInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cra",
			Subsystem: "index",
			Name:      "scans_in_flight",
			Help:      "Number of corpus scans currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "index",
			Name:      "files_total",
			Help:      "Files handled by scans, by outcome.",
		},
		[]string{"service", "outcome"},
	)
	indexedChunks := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cra",
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Chunks written by the most recent scan.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(scansTotal, scanDuration, scanInFlight, filesTotal, indexedChunks)

	return &IndexerMetrics{
		registry:      registry,
		scansTotal:    scansTotal,
		scanDuration:  scanDuration,
		scanInFlight:  scanInFlight,
		filesTotal:    filesTotal,
		indexedChunks: indexedChunks,
	}
}

func (m *IndexerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IndexerMetrics) StartScan() {
	m.scanInFlight.Inc()
}

func (m *IndexerMetrics) FinishScan(service string, duration time.Duration, err error) {
	m.scanInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.scansTotal.WithLabelValues(service, status).Inc()
	m.scanDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *IndexerMetrics) AddFiles(service, outcome string, count int) {
	if count <= 0 {
		return
	}
	m.filesTotal.WithLabelValues(service, outcome).Add(float64(count))
}

func (m *IndexerMetrics) SetChunksWritten(count int) {
	if count < 0 {
		return
	}
	m.indexedChunks.Set(float64(count))
}
