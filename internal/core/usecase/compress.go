package usecase

import (
	"context"
	"strings"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

// compressCandidates asks the LLM to strip each passage down to the
// sentences relevant to the question. Only the first
// CompressMaxPassages passages are sent to the model; the rest pass
// through. A passage judged off-topic is dropped entirely, an LLM
// failure keeps the original passage.
func (p *Pipeline) compressCandidates(ctx context.Context, question string, cands []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(cands))
	for i, cand := range cands {
		if i >= p.tuning.CompressMaxPassages {
			out = append(out, cand)
			continue
		}
		if len([]rune(cand.Chunk.Text)) < p.tuning.CompressMinLength {
			out = append(out, cand)
			continue
		}

		prompt := buildCompressPrompt(question, truncateRunes(cand.Chunk.Text, p.tuning.CompressMaxContent))
		result, err := p.generator.Generate(ctx, prompt)
		if err != nil {
			p.observer.StageFallback(StepCompress)
			out = append(out, cand)
			continue
		}

		result = strings.TrimSpace(result)
		if result == "" || result == compressRejectMarker || len([]rune(result)) <= p.tuning.CompressMinResult {
			// Off-topic or content-free extraction: drop the passage.
			continue
		}
		cand.Chunk.Text = result
		cand.Compressed = true
		out = append(out, cand)
	}
	return out
}
