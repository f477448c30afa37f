package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	questionsTotal     *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	stageFallbackTotal *prometheus.CounterVec
	retrievalDuration  *prometheus.HistogramVec
	retrievedPassages  *prometheus.HistogramVec
	noContextTotal     *prometheus.CounterVec
	streamedTokens     *prometheus.CounterVec
	lexicalIndexDocs   prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cra",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cra",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	questionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "pipeline",
			Name:      "questions_total",
			Help:      "Total answered questions by endpoint and status.",
		},
		[]string{"service", "endpoint", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cra",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	stageFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "pipeline",
			Name:      "stage_fallback_total",
			Help:      "Total pipeline stages that degraded to their fallback.",
		},
		[]string{"service", "stage"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cra",
			Subsystem: "pipeline",
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	retrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cra",
			Subsystem: "pipeline",
			Name:      "retrieved_passages",
			Help:      "Distribution of passages kept per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "pipeline",
			Name:      "no_context_total",
			Help:      "Total questions answered without any retrieved passage.",
		},
		[]string{"service"},
	)
	streamedTokens := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "llm",
			Name:      "streamed_tokens_total",
			Help:      "Total token events streamed to clients.",
		},
		[]string{"service"},
	)
	lexicalIndexDocs := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cra",
			Subsystem: "index",
			Name:      "lexical_documents",
			Help:      "Chunks held by the in-memory lexical index.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		questionsTotal,
		stageDuration,
		stageFallbackTotal,
		retrievalDuration,
		retrievedPassages,
		noContextTotal,
		streamedTokens,
		lexicalIndexDocs,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		questionsTotal:     questionsTotal,
		stageDuration:      stageDuration,
		stageFallbackTotal: stageFallbackTotal,
		retrievalDuration:  retrievalDuration,
		retrievedPassages:  retrievedPassages,
		noContextTotal:     noContextTotal,
		streamedTokens:     streamedTokens,
		lexicalIndexDocs:   lexicalIndexDocs,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds unrouted paths into one label value so probes and
// scanners cannot grow the metric cardinality.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/"), path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

func (m *HTTPServerMetrics) RecordQuestion(service, endpoint, status string) {
	if status == "" {
		status = "unknown"
	}
	m.questionsTotal.WithLabelValues(service, endpoint, status).Inc()
}

func (m *HTTPServerMetrics) AddStreamedTokens(service string, count int) {
	if count <= 0 {
		return
	}
	m.streamedTokens.WithLabelValues(service).Add(float64(count))
}

func (m *HTTPServerMetrics) SetLexicalIndexSize(size int) {
	m.lexicalIndexDocs.Set(float64(size))
}

// Pipeline returns a recorder bound to one service label. It satisfies
// the pipeline's observer port.
func (m *HTTPServerMetrics) Pipeline(service string) *PipelineRecorder {
	return &PipelineRecorder{service: service, metrics: m}
}

type PipelineRecorder struct {
	service string
	metrics *HTTPServerMetrics
}

func (r *PipelineRecorder) ObserveStage(stage string, seconds float64) {
	r.metrics.stageDuration.WithLabelValues(r.service, stage).Observe(seconds)
}

func (r *PipelineRecorder) StageFallback(stage string) {
	r.metrics.stageFallbackTotal.WithLabelValues(r.service, stage).Inc()
}

func (r *PipelineRecorder) ObserveRetrieval(numDocs int, seconds float64) {
	r.metrics.retrievalDuration.WithLabelValues(r.service).Observe(seconds)
	r.metrics.retrievedPassages.WithLabelValues(r.service).Observe(float64(numDocs))
}

func (r *PipelineRecorder) NoContext() {
	r.metrics.noContextTotal.WithLabelValues(r.service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
