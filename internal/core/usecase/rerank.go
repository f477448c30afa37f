package usecase

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

type rerankScores struct {
	Scores []float64 `json:"scores"`
}

// rerankCandidates reorders candidates with one batched LLM relevance
// judgment on a 0-10 scale. The bool result reports whether the
// reranking was applied; on any failure the incoming order is kept,
// trimmed to limit. Equal scores preserve the fused order.
func (p *Pipeline) rerankCandidates(ctx context.Context, query string, cands []domain.Candidate, limit int) ([]domain.Candidate, bool) {
	if len(cands) == 0 {
		return cands, false
	}

	passages := make([]string, len(cands))
	for i, cand := range cands {
		passages[i] = truncateRunes(cand.Chunk.Text, p.tuning.RerankMaxPassage)
	}

	raw, err := p.generator.GenerateJSON(ctx, buildRerankPrompt(query, passages))
	if err != nil {
		return trimCandidates(cands, limit), false
	}

	var parsed rerankScores
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || len(parsed.Scores) == 0 {
		return trimCandidates(cands, limit), false
	}

	ranked := make([]domain.Candidate, len(cands))
	copy(ranked, cands)
	for i := range ranked {
		score := p.tuning.RerankDefaultScore
		if i < len(parsed.Scores) && parsed.Scores[i] >= 0 {
			score = parsed.Scores[i]
		}
		ranked[i].RerankScore = score
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})

	return trimCandidates(ranked, limit), true
}
