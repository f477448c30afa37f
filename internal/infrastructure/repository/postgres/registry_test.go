package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

func newRegistryWithMock(t *testing.T) (*FileRegistry, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &FileRegistry{db: db}, mock, func() { _ = db.Close() }
}

func TestKnownHashesMapsFilepathToHash(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT filepath, source_hash").
		WillReturnRows(sqlmock.NewRows([]string{"filepath", "source_hash"}).
			AddRow("Genie Logiciel/cm1.pdf", "aaa").
			AddRow("Algorithmique/td2.pdf", "bbb"))

	got, err := repo.KnownHashes(context.Background())
	if err != nil {
		t.Fatalf("KnownHashes() error = %v", err)
	}
	if len(got) != 2 || got["Genie Logiciel/cm1.pdf"] != "aaa" {
		t.Fatalf("unexpected hashes: %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertWritesAllColumns(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	indexedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO indexed_files").
		WithArgs("Genie Logiciel/cm1.pdf", "cm1.pdf", "Genie Logiciel", "CM", "aaa", 12, indexedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), domain.IndexedFile{
		Filepath:   "Genie Logiciel/cm1.pdf",
		Filename:   "cm1.pdf",
		Subject:    "Genie Logiciel",
		DocType:    domain.DocTypeCM,
		SourceHash: "aaa",
		ChunkCount: 12,
		IndexedAt:  indexedAt,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM indexed_files").
		WithArgs("Genie Logiciel/cm1.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "Genie Logiciel/cm1.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStatsAggregatesBySubject(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	lastUpdate := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT subject, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"subject", "count", "sum"}).
			AddRow("Algorithmique", 3, 120).
			AddRow("Genie Logiciel", 2, 80))
	mock.ExpectQuery("SELECT MAX").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(lastUpdate))

	got, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if got.Files != 5 || got.Chunks != 200 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if len(got.BySubject) != 2 || got.BySubject[0].Subject != "Algorithmique" {
		t.Fatalf("unexpected breakdown: %+v", got.BySubject)
	}
	if !got.LastUpdate.Equal(lastUpdate) {
		t.Fatalf("unexpected last update: %v", got.LastUpdate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStatsHandlesEmptyRegistry(t *testing.T) {
	repo, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT subject, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"subject", "count", "sum"}))
	mock.ExpectQuery("SELECT MAX").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	got, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if got.Files != 0 || got.Chunks != 0 || len(got.BySubject) != 0 {
		t.Fatalf("expected empty stats, got %+v", got)
	}
	if !got.LastUpdate.IsZero() {
		t.Fatalf("expected zero last update, got %v", got.LastUpdate)
	}
}
