package ports

import (
	"context"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

// ChatService is the inbound contract for streamed question answering.
// Ask validates synchronously; the returned channel is closed after the
// terminal event (done or error).
type ChatService interface {
	Ask(ctx context.Context, req domain.AskRequest) (<-chan domain.Event, error)
	ClearSession(sessionID string)
}

// CorpusSearcher exposes retrieval without generation (MCP, debugging).
type CorpusSearcher interface {
	SearchCorpus(ctx context.Context, query string, k int, filter domain.SearchFilter) ([]domain.Candidate, error)
}

// CorpusIndexer is the inbound contract for indexing passes.
type CorpusIndexer interface {
	Scan(ctx context.Context, full bool) (domain.ScanReport, error)
}
