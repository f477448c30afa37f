// Package postgres persists the indexing registry and the exchange log.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// FileRegistry records which course files are indexed and under which
// content hash, so a scan can skip unchanged files.
type FileRegistry struct {
	db *sql.DB
}

func NewFileRegistry(db *sql.DB) *FileRegistry {
	return &FileRegistry{db: db}
}

func (r *FileRegistry) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS indexed_files (
	filepath TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	subject TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	source_hash TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	indexed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_indexed_files_subject ON indexed_files(subject);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *FileRegistry) KnownHashes(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT filepath, source_hash
FROM indexed_files
`)
	if err != nil {
		return nil, fmt.Errorf("query known hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var filepath, hash string
		if err := rows.Scan(&filepath, &hash); err != nil {
			return nil, fmt.Errorf("scan known hash: %w", err)
		}
		out[filepath] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known hashes: %w", err)
	}
	return out, nil
}

func (r *FileRegistry) Upsert(ctx context.Context, file domain.IndexedFile) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO indexed_files (filepath, filename, subject, doc_type, source_hash, chunk_count, indexed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (filepath) DO UPDATE SET
	filename = EXCLUDED.filename,
	subject = EXCLUDED.subject,
	doc_type = EXCLUDED.doc_type,
	source_hash = EXCLUDED.source_hash,
	chunk_count = EXCLUDED.chunk_count,
	indexed_at = EXCLUDED.indexed_at
`,
		file.Filepath, file.Filename, file.Subject, string(file.DocType),
		file.SourceHash, file.ChunkCount, file.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert indexed file: %w", err)
	}
	return nil
}

func (r *FileRegistry) Delete(ctx context.Context, filepath string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM indexed_files WHERE filepath = $1`, filepath); err != nil {
		return fmt.Errorf("delete indexed file: %w", err)
	}
	return nil
}

func (r *FileRegistry) Stats(ctx context.Context) (domain.IndexStats, error) {
	var stats domain.IndexStats

	rows, err := r.db.QueryContext(ctx, `
SELECT subject, COUNT(*), COALESCE(SUM(chunk_count), 0)
FROM indexed_files
GROUP BY subject
ORDER BY subject
`)
	if err != nil {
		return stats, fmt.Errorf("query subject stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.SubjectStats
		if err := rows.Scan(&s.Subject, &s.Files, &s.Chunks); err != nil {
			return stats, fmt.Errorf("scan subject stats: %w", err)
		}
		stats.BySubject = append(stats.BySubject, s)
		stats.Files += s.Files
		stats.Chunks += s.Chunks
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate subject stats: %w", err)
	}

	var last sql.NullTime
	err = r.db.QueryRowContext(ctx, `SELECT MAX(indexed_at) FROM indexed_files`).Scan(&last)
	if err != nil {
		return stats, fmt.Errorf("query last update: %w", err)
	}
	if last.Valid {
		stats.LastUpdate = last.Time
	}
	return stats, nil
}
