package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

// searchCandidates runs the semantic and lexical arms concurrently and
// fuses them. The returned step name is what goes into telemetry:
// hybrid_search, or semantic_search when hybrid is disabled.
//
// An unavailable vector index degrades to an empty semantic arm so the
// lexical arm can still carry the request; any other semantic failure
// is fatal to retrieval.
func (p *Pipeline) searchCandidates(ctx context.Context, searchQuery, lexicalQuery string, cfg domain.PipelineConfig) ([]domain.Candidate, string, error) {
	limit := cfg.NbSources * p.tuning.OverfetchFactor
	filter := domain.SearchFilter{Subjects: cfg.Subjects}

	var (
		wg       sync.WaitGroup
		semantic []domain.Candidate
		semErr   error
		lexical  []domain.Candidate
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		semantic, semErr = p.semanticSearch(ctx, searchQuery, limit, filter)
	}()

	if cfg.EnableHybrid {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lexical = p.lexical.Search(lexicalQuery, limit, filter)
		}()
	}
	wg.Wait()

	if semErr != nil {
		if !domain.IsKind(semErr, domain.ErrIndexUnavailable) {
			return nil, "", fmt.Errorf("semantic search: %w", semErr)
		}
		semantic = nil
	}

	if !cfg.EnableHybrid {
		return semantic, StepSemanticSearch, nil
	}

	fused := fuseCandidatesRRF(semantic, lexical, p.tuning)
	return trimCandidates(fused, limit), StepHybridSearch, nil
}

func (p *Pipeline) semanticSearch(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	vector, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	fetch := limit * p.tuning.OverfetchFactor
	return p.vector.SearchMMR(ctx, vector, limit, fetch, p.tuning.MMRLambda, filter)
}
