package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
	"github.com/tbocquet/course-rag-assistant/internal/core/ports"
)

const excerptChars = 300

// Handlers carries the tool implementations and their dependencies.
type Handlers struct {
	chat     ports.ChatService
	searcher ports.CorpusSearcher
	registry ports.FileRegistry
	subjects []string
}

// CourseQuestion runs the full pipeline and collects the streamed
// answer into one response; MCP tool calls are not incremental.
func (h *Handlers) CourseQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		sessionID = "mcp-" + uuid.NewString()
	}

	cfg := domain.DefaultPipelineConfig()
	cfg.Subjects = stringArrayArgument(request, "subjects")
	cfg.NbSources = request.GetInt("nb_sources", cfg.NbSources)

	events, err := h.chat.Ask(ctx, domain.AskRequest{
		SessionID: sessionID,
		Question:  question,
		Config:    cfg,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var answer strings.Builder
	var meta *domain.Meta
	var totalTime float64
	for ev := range events {
		switch ev.Kind {
		case domain.EventMeta:
			meta = ev.Meta
		case domain.EventToken:
			answer.WriteString(ev.Token)
		case domain.EventDone:
			totalTime = ev.Done.TotalTime
		case domain.EventError:
			return mcp.NewToolResultError(ev.Err), nil
		}
	}

	response := map[string]interface{}{
		"answer":     answer.String(),
		"session_id": sessionID,
		"total_time": totalTime,
	}
	if meta != nil {
		response["sources"] = meta.Sources
		response["num_docs"] = meta.NumDocs
		response["rewritten_query"] = meta.RewrittenQuery
	}

	return marshalResult(response)
}

// SearchCorpus returns ranked passages with short excerpts.
func (h *Handlers) SearchCorpus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	maxResults := request.GetInt("max_results", 5)
	filter := domain.SearchFilter{Subjects: stringArrayArgument(request, "subjects")}

	results, err := h.searcher.SearchCorpus(ctx, query, maxResults, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	passages := make([]map[string]interface{}, 0, len(results))
	for _, cand := range results {
		passages = append(passages, map[string]interface{}{
			"subject":     cand.Chunk.Subject,
			"doc_type":    string(cand.Chunk.DocType),
			"filename":    cand.Chunk.Filename,
			"chunk_index": cand.Chunk.ChunkIndex,
			"score":       cand.Score,
			"origin":      string(cand.Origin),
			"excerpt":     excerpt(cand.Chunk.Text),
		})
	}

	return marshalResult(map[string]interface{}{
		"passages": passages,
		"count":    len(passages),
	})
}

func (h *Handlers) ListSubjects(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]interface{}{"subjects": h.subjects})
}

func (h *Handlers) IndexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.registry.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats unavailable: %v", err)), nil
	}
	return marshalResult(stats)
}

func marshalResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringArrayArgument reads an optional array-of-strings argument;
// anything else yields nil.
func stringArrayArgument(request mcp.CallToolRequest, key string) []string {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func excerpt(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= excerptChars {
		return string(runes)
	}
	return string(runes[:excerptChars]) + "..."
}
