package usecase

import (
	"sort"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

type fusedCandidate struct {
	cand  domain.Candidate
	score float64
}

// fuseCandidatesRRF merges the semantic and lexical arms by weighted
// reciprocal-rank fusion: rank r in an arm contributes
// weight/(K + r + 1) with r zero-based. A chunk found by both arms
// accumulates both contributions and gets Origin "both".
func fuseCandidatesRRF(semantic, lexical []domain.Candidate, tuning domain.PipelineTuning) []domain.Candidate {
	acc := make(map[string]fusedCandidate, len(semantic)+len(lexical))

	addArm := func(arm []domain.Candidate, weight float64, origin domain.Origin) {
		seen := make(map[string]struct{}, len(arm))
		for rank, cand := range arm {
			id := cand.Chunk.ID
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			entry, ok := acc[id]
			if !ok {
				entry.cand = cand
				entry.cand.Origin = origin
			} else if entry.cand.Origin != origin {
				entry.cand.Origin = domain.OriginBoth
			}
			entry.score += weight / float64(tuning.RRFConstant+rank+1)
			acc[id] = entry
		}
	}

	addArm(semantic, tuning.SemanticWeight, domain.OriginSemantic)
	addArm(lexical, tuning.LexicalWeight, domain.OriginLexical)

	out := make([]domain.Candidate, 0, len(acc))
	for _, entry := range acc {
		cand := entry.cand
		cand.Score = entry.score
		out = append(out, cand)
	}

	sortCandidates(out)
	return out
}

// sortCandidates orders by descending score with a deterministic
// tie-break so equal scores never depend on map iteration order.
func sortCandidates(cands []domain.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		if cands[i].Chunk.Filepath != cands[j].Chunk.Filepath {
			return cands[i].Chunk.Filepath < cands[j].Chunk.Filepath
		}
		if cands[i].Chunk.ChunkIndex != cands[j].Chunk.ChunkIndex {
			return cands[i].Chunk.ChunkIndex < cands[j].Chunk.ChunkIndex
		}
		return cands[i].Chunk.ID < cands[j].Chunk.ID
	})
}

func trimCandidates(cands []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(cands) <= limit {
		return cands
	}
	return cands[:limit]
}
