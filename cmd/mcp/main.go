package main

import (
	"context"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/tbocquet/course-rag-assistant/internal/adapters/mcp"
	"github.com/tbocquet/course-rag-assistant/internal/bootstrap"
	"github.com/tbocquet/course-rag-assistant/internal/config"
	"github.com/tbocquet/course-rag-assistant/internal/observability/logging"
)

const service = "cra-mcp"

const version = "1.0.0"

func main() {
	cfg := config.Load()
	// Stdout carries the MCP protocol; logs go to stderr.
	slog.SetDefault(logging.NewStdioSafeLogger(service, cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if size, err := app.RebuildLexicalIndex(context.Background()); err != nil {
		slog.Warn("lexical_rebuild_failed", "error", err)
	} else {
		slog.Info("lexical_index_ready", "documents", size)
	}

	server := mcpadapter.NewServer(version, app.Pipeline, app.Pipeline, app.Registry, app.Corpus.Subjects())

	slog.Info("mcp_listening", "transport", "stdio")
	if err := mcpserver.ServeStdio(server); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
