// Package httpadapter exposes the question answering pipeline and the
// index over REST, with the chat endpoint streaming server-sent events.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tbocquet/course-rag-assistant/internal/adapters/http/openapi"
	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
	"github.com/tbocquet/course-rag-assistant/internal/core/ports"
	"github.com/tbocquet/course-rag-assistant/internal/observability/metrics"
)

// Options carries the traffic control knobs. Zero fields fall back to
// defaults suited for a single instance.
type Options struct {
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxConcurrent    int
	BackpressureWait time.Duration
}

func (o *Options) normalize() {
	if o.Service == "" {
		o.Service = "cra-api"
	}
	if o.RateLimitRPS <= 0 {
		o.RateLimitRPS = 10
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = 20
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 64
	}
	if o.BackpressureWait <= 0 {
		o.BackpressureWait = 50 * time.Millisecond
	}
}

type Router struct {
	chat     ports.ChatService
	searcher ports.CorpusSearcher
	registry ports.FileRegistry
	queue    ports.ScanQueue
	subjects []string
	tuning   domain.PipelineTuning
	metrics  *metrics.HTTPServerMetrics

	opts        Options
	limiter     *rateLimiter
	stopLimiter func()
}

func NewRouter(
	chat ports.ChatService,
	searcher ports.CorpusSearcher,
	registry ports.FileRegistry,
	queue ports.ScanQueue,
	subjects []string,
	tuning domain.PipelineTuning,
	m *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	opts.normalize()
	limiter, stop := newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	return &Router{
		chat:        chat,
		searcher:    searcher,
		registry:    registry,
		queue:       queue,
		subjects:    subjects,
		tuning:      tuning,
		metrics:     m,
		opts:        opts,
		limiter:     limiter,
		stopLimiter: stop,
	}
}

// Close stops the rate limiter's eviction goroutine.
func (rt *Router) Close() {
	rt.stopLimiter()
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/api/chat", rt.chatStream)
	mux.HandleFunc("/api/chat/clear", rt.clearSession)
	mux.HandleFunc("/api/search", rt.searchCorpus)
	mux.HandleFunc("/api/subjects", rt.listSubjects)
	mux.HandleFunc("/api/config", rt.showConfig)
	mux.HandleFunc("/api/index/scan", rt.requestScan)
	mux.HandleFunc("/api/index/stats", rt.indexStats)
	mux.HandleFunc("/api/openapi.yaml", rt.openapiSpec)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxConcurrent, rt.opts.BackpressureWait)
	handler = rt.limiter.middleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listSubjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": rt.subjects})
}

func (rt *Router) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"defaults": domain.DefaultPipelineConfig(),
		"tuning":   rt.tuning,
		"subjects": rt.subjects,
	})
}

func (rt *Router) clearSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.SessionID = ""
	}
	sessionID := firstNonEmpty(r.Header.Get(sessionIDHeader), req.SessionID)
	if strings.TrimSpace(sessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id est requis"})
		return
	}

	rt.chat.ClearSession(sessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "session effacee"})
}

func (rt *Router) searchCorpus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query    string   `json:"query"`
		K        int      `json:"k"`
		Subjects []string `json:"subjects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query est requis"})
		return
	}

	results, err := rt.searcher.SearchCorpus(r.Context(), req.Query, req.K, domain.SearchFilter{Subjects: req.Subjects})
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []domain.Candidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// requestScan queues an indexing pass; the worker picks it up from NATS.
// An empty body means an incremental scan.
func (rt *Router) requestScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Full bool `json:"full"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Full = false
	}

	if err := rt.queue.PublishScanRequest(r.Context(), req.Full); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "scan_requested",
		"full":   req.Full,
	})
}

func (rt *Router) indexStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.registry.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) openapiSpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapi.Spec)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
