package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

const sessionIDHeader = "X-Session-Id"

// chatConfigPayload mirrors PipelineConfig with pointer fields so that
// omitted knobs fall back to the defaults instead of zero values.
type chatConfigPayload struct {
	Subjects       []string `json:"subjects"`
	NbSources      *int     `json:"nb_sources"`
	EnableRewrite  *bool    `json:"enable_rewrite"`
	EnableHybrid   *bool    `json:"enable_hybrid"`
	EnableRerank   *bool    `json:"enable_rerank"`
	EnableCompress *bool    `json:"enable_compress"`
}

func (p *chatConfigPayload) merge() domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()
	if p == nil {
		return cfg
	}
	cfg.Subjects = p.Subjects
	if p.NbSources != nil {
		cfg.NbSources = *p.NbSources
	}
	if p.EnableRewrite != nil {
		cfg.EnableRewrite = *p.EnableRewrite
	}
	if p.EnableHybrid != nil {
		cfg.EnableHybrid = *p.EnableHybrid
	}
	if p.EnableRerank != nil {
		cfg.EnableRerank = *p.EnableRerank
	}
	if p.EnableCompress != nil {
		cfg.EnableCompress = *p.EnableCompress
	}
	return cfg
}

// chatStream answers one question as a server-sent event stream: one
// meta event, the answer tokens, then done. Errors after the headers
// are sent arrive as a terminal error event on the stream itself.
func (rt *Router) chatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string             `json:"session_id"`
		Question  string             `json:"question"`
		Config    *chatConfigPayload `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	sessionID := firstNonEmpty(r.Header.Get(sessionIDHeader), req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	events, err := rt.chat.Ask(r.Context(), domain.AskRequest{
		SessionID: sessionID,
		Question:  req.Question,
		Config:    req.Config.merge(),
	})
	if err != nil {
		rt.recordQuestion("chat", "rejected")
		w.Header().Set(sessionIDHeader, sessionID)
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported by response writer"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Nginx buffers streaming bodies unless told otherwise.
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(sessionIDHeader, sessionID)
	w.WriteHeader(http.StatusOK)

	tokens := 0
	status := "ok"
	for ev := range events {
		payload, err := encodeEvent(ev)
		if err != nil {
			slog.Error("sse_encode_failed", "kind", ev.Kind, "error", err)
			break
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			status = "disconnected"
			break
		}
		flusher.Flush()

		switch ev.Kind {
		case domain.EventToken:
			tokens++
		case domain.EventError:
			status = "error"
		}
	}

	if rt.metrics != nil {
		rt.metrics.AddStreamedTokens(rt.opts.Service, tokens)
	}
	rt.recordQuestion("chat", status)
}

func (rt *Router) recordQuestion(endpoint, status string) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordQuestion(rt.opts.Service, endpoint, status)
}

func encodeEvent(ev domain.Event) ([]byte, error) {
	switch ev.Kind {
	case domain.EventMeta:
		return json.Marshal(struct {
			Type string `json:"type"`
			domain.Meta
		}{Type: "meta", Meta: *ev.Meta})
	case domain.EventToken:
		return json.Marshal(struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}{Type: "token", Content: ev.Token})
	case domain.EventDone:
		return json.Marshal(struct {
			Type      string  `json:"type"`
			TotalTime float64 `json:"total_time"`
		}{Type: "done", TotalTime: ev.Done.TotalTime})
	default:
		return json.Marshal(struct {
			Type  string `json:"type"`
			Error string `json:"error"`
		}{Type: "error", Error: ev.Err})
	}
}
