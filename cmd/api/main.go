package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/tbocquet/course-rag-assistant/internal/adapters/http"
	"github.com/tbocquet/course-rag-assistant/internal/bootstrap"
	"github.com/tbocquet/course-rag-assistant/internal/config"
	"github.com/tbocquet/course-rag-assistant/internal/observability/logging"
	"github.com/tbocquet/course-rag-assistant/internal/observability/metrics"
)

const service = "cra-api"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewHTTPServerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, m.Pipeline(service))
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if size, err := app.RebuildLexicalIndex(ctx); err != nil {
		// The API still serves semantic-only retrieval until the next
		// corpus update rebuilds the index.
		slog.Warn("lexical_rebuild_failed", "error", err)
	} else {
		m.SetLexicalIndexSize(size)
		slog.Info("lexical_index_ready", "documents", size)
	}

	go func() {
		err := app.Queue.SubscribeCorpusUpdated(ctx, func(handlerCtx context.Context) error {
			size, err := app.RebuildLexicalIndex(handlerCtx)
			if err != nil {
				return err
			}
			m.SetLexicalIndexSize(size)
			slog.Info("lexical_index_rebuilt", "documents", size)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("corpus_updated_subscribe_failed", "error", err)
		}
	}()

	go pruneSessions(ctx, app, time.Duration(cfg.SessionIdleMinutes)*time.Minute)

	router := httpadapter.NewRouter(
		app.Pipeline, app.Pipeline, app.Registry, app.Queue,
		app.Corpus.Subjects(), app.Pipeline.Tuning(), m,
		httpadapter.Options{
			Service:          service,
			RateLimitRPS:     cfg.APIRateLimitRPS,
			RateLimitBurst:   cfg.APIRateLimitBurst,
			MaxConcurrent:    cfg.APIMaxConcurrent,
			BackpressureWait: time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
		},
	)
	defer router.Close()

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout; chat responses stream for as long as the
		// generation runs.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}

func pruneSessions(ctx context.Context, app *bootstrap.App, maxIdle time.Duration) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := app.Sessions.Prune(maxIdle); removed > 0 {
				slog.Info("sessions_pruned", "removed", removed)
			}
		}
	}
}
