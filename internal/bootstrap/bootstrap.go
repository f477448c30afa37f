// Package bootstrap wires configuration, infrastructure adapters and
// usecases into one App shared by the binaries. Each binary serves the
// parts it needs and ignores the rest.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/tbocquet/course-rag-assistant/internal/config"
	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
	"github.com/tbocquet/course-rag-assistant/internal/core/ports"
	"github.com/tbocquet/course-rag-assistant/internal/core/usecase"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/chunking"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/corpusfs"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/extractor"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/lexical"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/llm/ollama"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/resilience"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/session"
	"github.com/tbocquet/course-rag-assistant/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Corpus config.CorpusConfig

	Queue    ports.ScanQueue
	Registry ports.FileRegistry
	Vector   ports.VectorStore
	Lexical  ports.LexicalIndex
	Sessions *session.Store

	Pipeline *usecase.Pipeline
	Indexer  *usecase.IndexUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, observer ports.PipelineObserver) (*App, error) {
	corpus, err := config.LoadCorpus(cfg.CorpusConfigPath)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := postgres.NewFileRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure registry schema: %w", err)
	}
	exchanges := postgres.NewExchangeLog(db)
	if err := exchanges.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure exchange log schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{ResilienceExecutor: executor})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	lexicalIndex := lexical.NewIndex()
	sessions := session.NewStore(cfg.SessionMaxTurns)

	tuning := domain.PipelineTuning{
		OverfetchFactor: cfg.RAGOverfetchFactor,
		RRFConstant:     cfg.RAGFusionRRFK,
		SemanticWeight:  cfg.RAGSemanticWeight,
		LexicalWeight:   cfg.RAGLexicalWeight,
		MMRLambda:       cfg.RAGMMRLambda,
		MaxContextChars: cfg.RAGMaxContextChars,
	}
	pipeline := usecase.NewPipeline(
		embedder, vectorDB, lexicalIndex, generator,
		sessions, exchanges, observer,
		corpus.Subjects(), tuning,
	)

	scanner := corpusfs.NewScanner(corpus.CoursesDir, corpus.SupportedExtensions, corpus.ExcludedPatterns, corpus.SubjectNames)
	texts := extractor.NewComposite(corpus.MinPageLength, corpus.MinLineLength,
		extractor.NewPDF(), extractor.NewXLSX(), extractor.NewText())
	chunker := chunking.NewSplitter(corpus.ChunkSize, corpus.ChunkOverlap)
	indexer := usecase.NewIndexUseCase(scanner, registry, texts, chunker, embedder, vectorDB, corpus.BatchSize)

	return &App{
		Config: cfg,
		Corpus: corpus,

		Queue:    queue,
		Registry: registry,
		Vector:   vectorDB,
		Lexical:  lexicalIndex,
		Sessions: sessions,

		Pipeline: pipeline,
		Indexer:  indexer,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// RebuildLexicalIndex scrolls the vector store and rebuilds the BM25
// index from the chunk payloads. It returns the new index size. A
// missing collection rebuilds to an empty index without error.
func (a *App) RebuildLexicalIndex(ctx context.Context) (int, error) {
	var chunks []domain.Chunk
	err := a.Vector.Scroll(ctx, func(batch []domain.Chunk) error {
		chunks = append(chunks, batch...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scroll vector store: %w", err)
	}
	a.Lexical.Rebuild(chunks)
	return a.Lexical.Size(), nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
