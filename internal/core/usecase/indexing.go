package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
	"github.com/tbocquet/course-rag-assistant/internal/core/ports"
)

// IndexUseCase keeps the vector index and file registry in sync with
// the courses directory. Unchanged files (same content hash) are
// skipped unless a full pass is requested.
type IndexUseCase struct {
	scanner   ports.CorpusScanner
	registry  ports.FileRegistry
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vector    ports.VectorStore
	batchSize int
}

func NewIndexUseCase(
	scanner ports.CorpusScanner,
	registry ports.FileRegistry,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vector ports.VectorStore,
	batchSize int,
) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &IndexUseCase{
		scanner:   scanner,
		registry:  registry,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vector:    vector,
		batchSize: batchSize,
	}
}

// Scan walks the courses directory and indexes new and changed files,
// removing index entries for files that disappeared from disk. A
// failure on one file does not abort the pass.
func (uc *IndexUseCase) Scan(ctx context.Context, full bool) (domain.ScanReport, error) {
	start := time.Now()
	var report domain.ScanReport

	files, err := uc.scanner.ListFiles(ctx)
	if err != nil {
		return report, fmt.Errorf("scan courses dir: %w", err)
	}
	known, err := uc.registry.KnownHashes(ctx)
	if err != nil {
		return report, fmt.Errorf("load known hashes: %w", err)
	}

	current := make(map[string]struct{}, len(files))
	for _, file := range files {
		report.Scanned++
		current[file.Path] = struct{}{}

		oldHash, indexed := known[file.Path]
		if !full && indexed && oldHash == file.Hash {
			report.Skipped++
			continue
		}

		chunkCount, err := uc.indexFile(ctx, file, indexed)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			continue
		}
		report.Indexed++
		report.Chunks += chunkCount
	}

	removed := make([]string, 0)
	for path := range known {
		if _, ok := current[path]; !ok {
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)
	if len(removed) > 0 {
		if err := uc.vector.DeleteByFilepaths(ctx, removed); err != nil {
			return report, fmt.Errorf("delete removed files from index: %w", err)
		}
		for _, path := range removed {
			if err := uc.registry.Delete(ctx, path); err != nil {
				return report, fmt.Errorf("delete registry row %s: %w", path, err)
			}
		}
		report.Removed = len(removed)
	}

	report.Duration = roundSeconds(time.Since(start))
	return report, nil
}

func (uc *IndexUseCase) indexFile(ctx context.Context, file domain.CourseFile, reindex bool) (int, error) {
	text, err := uc.extractor.Extract(ctx, file.AbsPath)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", file.Path, err)
	}
	docType := domain.DocTypeFromFilename(file.Filename)

	pieces := uc.chunker.Split(text)
	if len(pieces) == 0 {
		// A scanned-image PDF or an empty file yields no usable text.
		// Record it with zero chunks so later scans skip it instead of
		// failing on it forever.
		if reindex {
			if err := uc.vector.DeleteByFilepaths(ctx, []string{file.Path}); err != nil {
				return 0, fmt.Errorf("delete stale chunks %s: %w", file.Path, err)
			}
		}
		if err := uc.registerFile(ctx, file, docType, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			ID:         chunkID(file.Path, i),
			Text:       piece,
			Subject:    file.Subject,
			DocType:    docType,
			Filename:   file.Filename,
			Filepath:   file.Path,
			ChunkIndex: i,
			SourceHash: file.Hash,
		}
	}

	vectors, err := uc.embedChunks(ctx, pieces)
	if err != nil {
		return 0, err
	}

	// A changed file may have fewer chunks than before; stale points
	// must not survive the rewrite.
	if reindex {
		if err := uc.vector.DeleteByFilepaths(ctx, []string{file.Path}); err != nil {
			return 0, fmt.Errorf("delete stale chunks %s: %w", file.Path, err)
		}
	}
	if err := uc.vector.UpsertChunks(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert chunks %s: %w", file.Path, err)
	}

	if err := uc.registerFile(ctx, file, docType, len(chunks)); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (uc *IndexUseCase) registerFile(ctx context.Context, file domain.CourseFile, docType domain.DocType, chunkCount int) error {
	err := uc.registry.Upsert(ctx, domain.IndexedFile{
		Filepath:   file.Path,
		Filename:   file.Filename,
		Subject:    file.Subject,
		DocType:    docType,
		SourceHash: file.Hash,
		ChunkCount: chunkCount,
		IndexedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("upsert registry row %s: %w", file.Path, err)
	}
	return nil
}

func (uc *IndexUseCase) embedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for from := 0; from < len(texts); from += uc.batchSize {
		to := min(from+uc.batchSize, len(texts))
		batch, err := uc.embedder.Embed(ctx, texts[from:to])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", from, to, err)
		}
		if len(batch) != to-from {
			return nil, domain.WrapError(domain.ErrInvalidInput, "embed batch",
				fmt.Errorf("vectors/texts mismatch: %d/%d", len(batch), to-from))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// chunkID derives a stable point ID from file position, so unchanged
// files keep their IDs across runs.
func chunkID(path string, index int) string {
	name := "course-rag://" + path + "#" + strconv.Itoa(index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
