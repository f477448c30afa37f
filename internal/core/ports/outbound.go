package ports

import (
	"context"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes chunks and performs semantic search. Search
// methods report domain.ErrIndexUnavailable when the collection is
// missing or empty.
type VectorStore interface {
	UpsertChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
	SearchMMR(ctx context.Context, queryVector []float32, limit, fetchLimit int, lambda float64, filter domain.SearchFilter) ([]domain.Candidate, error)
	Scroll(ctx context.Context, fn func(chunks []domain.Chunk) error) error
	DeleteByFilepaths(ctx context.Context, filepaths []string) error
	Count(ctx context.Context) (int, error)
}

// LexicalIndex is the in-process BM25 arm of hybrid retrieval. Search
// never fails; an empty or cold index returns no candidates.
type LexicalIndex interface {
	Rebuild(chunks []domain.Chunk)
	Search(query string, limit int, filter domain.SearchFilter) []domain.Candidate
	Size() int
}

// TextGenerator creates completions for the pipeline stages.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	StreamChat(ctx context.Context, messages []domain.Turn, onToken func(token string) error) error
}

// SessionStore keeps per-session conversation history.
type SessionStore interface {
	History(sessionID string) []domain.Turn
	Append(sessionID string, turns ...domain.Turn)
	Clear(sessionID string)
}

// FileRegistry tracks which course files are indexed and under what
// content hash.
type FileRegistry interface {
	EnsureSchema(ctx context.Context) error
	KnownHashes(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, file domain.IndexedFile) error
	Delete(ctx context.Context, filepath string) error
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// ExchangeLog persists completed question/answer exchanges. Failures
// are logged by callers, never surfaced to the user.
type ExchangeLog interface {
	Append(ctx context.Context, exchange domain.Exchange) error
}

// ScanQueue carries indexing traffic between the API and the worker.
type ScanQueue interface {
	PublishScanRequest(ctx context.Context, full bool) error
	SubscribeScanRequests(ctx context.Context, handler func(ctx context.Context, full bool) error) error
	PublishCorpusUpdated(ctx context.Context, report domain.ScanReport) error
	SubscribeCorpusUpdated(ctx context.Context, handler func(ctx context.Context) error) error
}

// CorpusScanner lists course files with content hashes and resolved
// subject names.
type CorpusScanner interface {
	ListFiles(ctx context.Context) ([]domain.CourseFile, error)
}

// TextExtractor extracts plain text from a course file on disk.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
	Supports(path string) bool
}

// PipelineObserver receives stage-level telemetry. Implementations must
// be safe for concurrent use.
type PipelineObserver interface {
	ObserveStage(stage string, seconds float64)
	StageFallback(stage string)
	ObserveRetrieval(numDocs int, seconds float64)
	NoContext()
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}
