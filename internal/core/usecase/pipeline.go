package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
	"github.com/tbocquet/course-rag-assistant/internal/core/ports"
)

// Telemetry step names, in pipeline order.
const (
	StepQueryRewrite   = "query_rewrite"
	StepHybridSearch   = "hybrid_search"
	StepSemanticSearch = "semantic_search"
	StepRerank         = "rerank"
	StepCompress       = "compress"
)

const eventBuffer = 8

const exchangeLogTimeout = 5 * time.Second

// Pipeline sequences the retrieval stages and streams the generated
// answer as typed events. One Pipeline serves all sessions; per-request
// state stays on the stack of each Ask call.
type Pipeline struct {
	embedder  ports.Embedder
	vector    ports.VectorStore
	lexical   ports.LexicalIndex
	generator ports.TextGenerator
	sessions  ports.SessionStore
	exchanges ports.ExchangeLog
	observer  ports.PipelineObserver
	subjects  []string
	tuning    domain.PipelineTuning
}

func NewPipeline(
	embedder ports.Embedder,
	vector ports.VectorStore,
	lexical ports.LexicalIndex,
	generator ports.TextGenerator,
	sessions ports.SessionStore,
	exchanges ports.ExchangeLog,
	observer ports.PipelineObserver,
	subjects []string,
	tuning domain.PipelineTuning,
) *Pipeline {
	if tuning.OverfetchFactor < 2 {
		tuning.OverfetchFactor = 3
	}
	if tuning.RRFConstant <= 0 {
		tuning.RRFConstant = 60
	}
	if tuning.SemanticWeight <= 0 {
		tuning.SemanticWeight = 0.6
	}
	if tuning.LexicalWeight <= 0 {
		tuning.LexicalWeight = 0.4
	}
	if tuning.MMRLambda <= 0 {
		tuning.MMRLambda = 0.7
	}
	if tuning.RerankMaxPassage <= 0 {
		tuning.RerankMaxPassage = 1500
	}
	if tuning.RerankDefaultScore <= 0 {
		tuning.RerankDefaultScore = 5.0
	}
	if tuning.CompressMinLength <= 0 {
		tuning.CompressMinLength = 200
	}
	if tuning.CompressMaxContent <= 0 {
		tuning.CompressMaxContent = 3000
	}
	if tuning.CompressMinResult <= 0 {
		tuning.CompressMinResult = 30
	}
	if tuning.CompressMaxPassages <= 0 {
		tuning.CompressMaxPassages = 6
	}
	if tuning.RewriteContextTurns <= 0 {
		tuning.RewriteContextTurns = 4
	}
	if tuning.RewriteTurnChars <= 0 {
		tuning.RewriteTurnChars = 200
	}
	if tuning.RewriteMaxContext <= 0 {
		tuning.RewriteMaxContext = 1000
	}
	if tuning.MaxContextChars <= 0 {
		tuning.MaxContextChars = 20000
	}
	if tuning.MetaContextChars <= 0 {
		tuning.MetaContextChars = 3000
	}
	if observer == nil {
		observer = noopObserver{}
	}

	return &Pipeline{
		embedder:  embedder,
		vector:    vector,
		lexical:   lexical,
		generator: generator,
		sessions:  sessions,
		exchanges: exchanges,
		observer:  observer,
		subjects:  subjects,
		tuning:    tuning,
	}
}

// Tuning returns the normalized process-wide tuning, for the config
// introspection endpoint.
func (p *Pipeline) Tuning() domain.PipelineTuning {
	return p.tuning
}

// Ask validates the request synchronously, then runs the pipeline in a
// goroutine. The returned channel is closed after the terminal event;
// a cancelled caller context stops the stream without a terminal event
// and without touching session history.
func (p *Pipeline) Ask(ctx context.Context, req domain.AskRequest) (<-chan domain.Event, error) {
	question, err := domain.ValidateQuestion(req.Question)
	if err != nil {
		return nil, err
	}
	cfg := req.Config
	cfg.Normalize()
	if err := cfg.Validate(p.subjects); err != nil {
		return nil, err
	}

	events := make(chan domain.Event, eventBuffer)
	go p.run(ctx, req.SessionID, question, cfg, events)
	return events, nil
}

func (p *Pipeline) ClearSession(sessionID string) {
	p.sessions.Clear(sessionID)
}

// SearchCorpus exposes fused retrieval without generation.
func (p *Pipeline) SearchCorpus(ctx context.Context, query string, k int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	if k <= 0 {
		k = domain.DefaultNbSources
	}
	cfg := domain.PipelineConfig{Subjects: filter.Subjects, NbSources: k, EnableHybrid: true}
	cands, _, err := p.searchCandidates(ctx, query, query, cfg)
	if err != nil {
		return nil, err
	}
	return trimCandidates(cands, k), nil
}

func (p *Pipeline) run(ctx context.Context, sessionID, question string, cfg domain.PipelineConfig, events chan<- domain.Event) {
	defer close(events)
	start := time.Now()

	history := p.sessions.History(sessionID)

	result, err := p.retrieve(ctx, question, cfg, history)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.send(ctx, events, domain.ErrorEvent("La recherche documentaire a echoue. Reessayez dans un instant."))
		return
	}

	retrievalTime := time.Since(start)
	assembled := assembleContext(result.Candidates, p.tuning.MaxContextChars)
	numDocs := len(result.Candidates)
	p.observer.ObserveRetrieval(numDocs, retrievalTime.Seconds())

	promptContext := assembled
	if numDocs == 0 {
		p.observer.NoContext()
		promptContext = noSourcesMarker
	}

	meta := domain.Meta{
		Sources:        domain.DedupeSources(result.Candidates),
		RetrievalTime:  roundSeconds(retrievalTime),
		RewrittenQuery: result.RewrittenQuery,
		Steps:          result.Steps,
		NumDocs:        numDocs,
		Context:        truncateRunes(assembled, p.tuning.MetaContextChars),
	}
	if !p.send(ctx, events, domain.MetaEvent(meta)) {
		return
	}

	messages := buildChatMessages(systemPrompt(promptContext), history, question)
	var answer strings.Builder
	err = p.generator.StreamChat(ctx, messages, func(token string) error {
		answer.WriteString(token)
		if !p.send(ctx, events, domain.TokenEvent(token)) {
			return context.Canceled
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.send(ctx, events, domain.ErrorEvent("La generation de la reponse a echoue. Reessayez dans un instant."))
		return
	}

	total := time.Since(start)
	if !p.send(ctx, events, domain.DoneEvent(roundSeconds(total))) {
		return
	}

	p.sessions.Append(sessionID,
		domain.Turn{Role: domain.RoleUser, Content: question},
		domain.Turn{Role: domain.RoleAssistant, Content: answer.String()},
	)
	p.logExchange(ctx, sessionID, question, answer.String(), result, numDocs, retrievalTime, total)
}

// retrieve walks the stage sequence: rewrite, search, rerank, trim,
// compress. Disabled stages are skipped and never appear in Steps; the
// rerank step is only recorded when the LLM ranking was actually
// applied.
func (p *Pipeline) retrieve(ctx context.Context, question string, cfg domain.PipelineConfig, history []domain.Turn) (domain.RetrievalResult, error) {
	steps := make([]string, 0, 4)

	rewrite := rewriteResult{Rewritten: question}
	if cfg.EnableRewrite {
		stageStart := time.Now()
		rewrite = p.rewriteQuery(ctx, question, history)
		p.observer.ObserveStage(StepQueryRewrite, time.Since(stageStart).Seconds())
		steps = append(steps, StepQueryRewrite)
	}

	stageStart := time.Now()
	cands, searchStep, err := p.searchCandidates(ctx, rewrite.Rewritten, rewrite.lexicalQuery(), cfg)
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	p.observer.ObserveStage(searchStep, time.Since(stageStart).Seconds())
	steps = append(steps, searchStep)

	if cfg.EnableRerank && len(cands) > 0 {
		stageStart = time.Now()
		ranked, applied := p.rerankCandidates(ctx, rewrite.Rewritten, cands, cfg.NbSources)
		p.observer.ObserveStage(StepRerank, time.Since(stageStart).Seconds())
		cands = ranked
		if applied {
			steps = append(steps, StepRerank)
		} else {
			p.observer.StageFallback(StepRerank)
		}
	}

	cands = trimCandidates(cands, cfg.NbSources)

	if cfg.EnableCompress && len(cands) > 0 {
		stageStart = time.Now()
		cands = p.compressCandidates(ctx, question, cands)
		p.observer.ObserveStage(StepCompress, time.Since(stageStart).Seconds())
		steps = append(steps, StepCompress)
	}

	return domain.RetrievalResult{
		Candidates:     cands,
		RewrittenQuery: rewrite.Rewritten,
		Steps:          steps,
	}, nil
}

// send delivers an event unless the caller has gone away.
func (p *Pipeline) send(ctx context.Context, events chan<- domain.Event, ev domain.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// logExchange persists the completed exchange. Best-effort: the stream
// already finished, so a logging failure must not surface.
func (p *Pipeline) logExchange(ctx context.Context, sessionID, question, answer string, result domain.RetrievalResult, numDocs int, retrievalTime, total time.Duration) {
	if p.exchanges == nil {
		return
	}
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeLogTimeout)
	defer cancel()
	_ = p.exchanges.Append(logCtx, domain.Exchange{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		Question:       question,
		Answer:         answer,
		RewrittenQuery: result.RewrittenQuery,
		Steps:          result.Steps,
		NumDocs:        numDocs,
		RetrievalTime:  roundSeconds(retrievalTime),
		TotalTime:      roundSeconds(total),
		CreatedAt:      time.Now().UTC(),
	})
}

func buildChatMessages(system string, history []domain.Turn, question string) []domain.Turn {
	messages := make([]domain.Turn, 0, len(history)+2)
	messages = append(messages, domain.Turn{Role: domain.RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, domain.Turn{Role: domain.RoleUser, Content: question})
	return messages
}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, float64)  {}
func (noopObserver) StageFallback(string)          {}
func (noopObserver) ObserveRetrieval(int, float64) {}
func (noopObserver) NoContext()                    {}
