package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tbocquet/course-rag-assistant/internal/bootstrap"
	"github.com/tbocquet/course-rag-assistant/internal/config"
	"github.com/tbocquet/course-rag-assistant/internal/observability/logging"
	"github.com/tbocquet/course-rag-assistant/internal/observability/metrics"
)

const service = "cra-worker"

const scanTimeout = 30 * time.Minute

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	m := metrics.NewIndexerMetrics(service)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: m.Handler(),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	// Startup pass catches files added or removed while the worker was
	// down.
	if err := runScan(ctx, app, m, false); err != nil && ctx.Err() == nil {
		slog.Error("startup_scan_failed", "error", err)
	}

	slog.Info("worker_listening", "subject", "corpus.scan")
	err = app.Queue.SubscribeScanRequests(ctx, func(handlerCtx context.Context, full bool) error {
		scanCtx, cancel := context.WithTimeout(handlerCtx, scanTimeout)
		defer cancel()
		return runScan(scanCtx, app, m, full)
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func runScan(ctx context.Context, app *bootstrap.App, m *metrics.IndexerMetrics, full bool) error {
	m.StartScan()
	start := time.Now()
	report, err := app.Indexer.Scan(ctx, full)
	m.FinishScan(service, time.Since(start), err)
	if err != nil {
		return err
	}

	m.AddFiles(service, "indexed", report.Indexed)
	m.AddFiles(service, "skipped", report.Skipped)
	m.AddFiles(service, "removed", report.Removed)
	m.AddFiles(service, "failed", report.Failed)
	m.SetChunksWritten(report.Chunks)
	slog.Info("scan_completed",
		"full", full,
		"scanned", report.Scanned,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"removed", report.Removed,
		"failed", report.Failed,
		"chunks", report.Chunks,
		"duration_s", report.Duration,
	)

	if report.Indexed > 0 || report.Removed > 0 {
		if err := app.Queue.PublishCorpusUpdated(ctx, report); err != nil {
			// The API rebuilds on its next notification; losing one is
			// not fatal.
			slog.Warn("corpus_updated_publish_failed", "error", err)
		}
	}
	return nil
}
