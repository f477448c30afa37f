package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

// ExchangeLog is an append-only record of completed question/answer
// pairs, kept for debugging and usage review.
type ExchangeLog struct {
	db *sql.DB
}

func NewExchangeLog(db *sql.DB) *ExchangeLog {
	return &ExchangeLog{db: db}
}

func (l *ExchangeLog) EnsureSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS exchanges (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	rewritten_query TEXT,
	steps JSONB NOT NULL DEFAULT '[]'::jsonb,
	num_docs INTEGER NOT NULL DEFAULT 0,
	retrieval_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exchanges_session_created ON exchanges(session_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (l *ExchangeLog) Append(ctx context.Context, exchange domain.Exchange) error {
	steps := exchange.Steps
	if steps == nil {
		steps = []string{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
INSERT INTO exchanges (
	id, session_id, question, answer, rewritten_query, steps, num_docs, retrieval_seconds, total_seconds, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		exchange.ID, exchange.SessionID, exchange.Question, exchange.Answer,
		exchange.RewrittenQuery, stepsJSON, exchange.NumDocs,
		exchange.RetrievalTime, exchange.TotalTime, exchange.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}
