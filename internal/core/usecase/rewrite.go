package usecase

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

type rewriteResult struct {
	Rewritten string   `json:"rewritten"`
	Keywords  []string `json:"keywords"`
}

// lexicalQuery appends extracted keywords so the term-based arm sees
// them even when the rewritten sentence does not repeat them.
func (r rewriteResult) lexicalQuery() string {
	if len(r.Keywords) == 0 {
		return r.Rewritten
	}
	return r.Rewritten + " " + strings.Join(r.Keywords, " ")
}

// rewriteQuery resolves elliptical follow-up questions into
// self-contained search queries using recent history. Best-effort: an
// empty history or any LLM failure falls back to the original question.
func (p *Pipeline) rewriteQuery(ctx context.Context, question string, history []domain.Turn) rewriteResult {
	fallback := rewriteResult{Rewritten: question}
	if len(history) == 0 {
		return fallback
	}

	prompt := buildRewritePrompt(question, rewriteContext(history, p.tuning))
	raw, err := p.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		p.observer.StageFallback(StepQueryRewrite)
		return fallback
	}

	var parsed rewriteResult
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		p.observer.StageFallback(StepQueryRewrite)
		return fallback
	}
	parsed.Rewritten = strings.TrimSpace(parsed.Rewritten)
	if parsed.Rewritten == "" {
		p.observer.StageFallback(StepQueryRewrite)
		return fallback
	}
	return parsed
}

// rewriteContext joins the trailing history turns, each truncated, so
// one verbose answer cannot crowd out the rest of the window.
func rewriteContext(history []domain.Turn, tuning domain.PipelineTuning) string {
	turns := history
	if len(turns) > tuning.RewriteContextTurns {
		turns = turns[len(turns)-tuning.RewriteContextTurns:]
	}
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		parts = append(parts, truncateRunes(turn.Content, tuning.RewriteTurnChars))
	}
	return truncateRunes(strings.Join(parts, "\n"), tuning.RewriteMaxContext)
}
