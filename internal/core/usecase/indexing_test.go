package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

type scannerFake struct {
	files []domain.CourseFile
	err   error
}

func (f *scannerFake) ListFiles(context.Context) ([]domain.CourseFile, error) {
	return f.files, f.err
}

type registryFake struct {
	known   map[string]string
	upserts []domain.IndexedFile
	deletes []string
}

func (f *registryFake) EnsureSchema(context.Context) error { return nil }

func (f *registryFake) KnownHashes(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.known))
	for k, v := range f.known {
		out[k] = v
	}
	return out, nil
}

func (f *registryFake) Upsert(_ context.Context, file domain.IndexedFile) error {
	f.upserts = append(f.upserts, file)
	return nil
}

func (f *registryFake) Delete(_ context.Context, filepath string) error {
	f.deletes = append(f.deletes, filepath)
	return nil
}

func (f *registryFake) Stats(context.Context) (domain.IndexStats, error) {
	return domain.IndexStats{}, nil
}

// extractorFake returns canned text per absolute path. Chunks are
// encoded as pipe-separated segments for chunkerFake.
type extractorFake struct {
	texts  map[string]string
	errOn  string
	cancel context.CancelFunc
	calls  []string
}

func (f *extractorFake) Extract(_ context.Context, path string) (string, error) {
	f.calls = append(f.calls, path)
	if f.errOn != "" && path == f.errOn {
		if f.cancel != nil {
			f.cancel()
		}
		return "", errors.New("extraction failed")
	}
	return f.texts[path], nil
}

func (f *extractorFake) Supports(string) bool { return true }

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "|")
}

type indexEmbedderFake struct {
	batches [][]string
	short   bool
}

func (f *indexEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	n := len(texts)
	if f.short {
		n--
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{0.1}
	}
	return vectors, nil
}

func (f *indexEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0.1}, nil
}

type indexVectorFake struct {
	upserts [][]domain.Chunk
	deletes [][]string
}

func (f *indexVectorFake) UpsertChunks(_ context.Context, chunks []domain.Chunk, _ [][]float32) error {
	f.upserts = append(f.upserts, chunks)
	return nil
}

func (f *indexVectorFake) Search(context.Context, []float32, int, domain.SearchFilter) ([]domain.Candidate, error) {
	return nil, nil
}

func (f *indexVectorFake) SearchMMR(context.Context, []float32, int, int, float64, domain.SearchFilter) ([]domain.Candidate, error) {
	return nil, nil
}

func (f *indexVectorFake) Scroll(context.Context, func([]domain.Chunk) error) error { return nil }

func (f *indexVectorFake) DeleteByFilepaths(_ context.Context, filepaths []string) error {
	f.deletes = append(f.deletes, filepaths)
	return nil
}

func (f *indexVectorFake) Count(context.Context) (int, error) { return 0, nil }

type indexFixture struct {
	scanner   *scannerFake
	registry  *registryFake
	extractor *extractorFake
	embedder  *indexEmbedderFake
	vector    *indexVectorFake
	batchSize int
}

func newIndexFixture() *indexFixture {
	return &indexFixture{
		scanner:   &scannerFake{},
		registry:  &registryFake{known: map[string]string{}},
		extractor: &extractorFake{texts: map[string]string{}},
		embedder:  &indexEmbedderFake{},
		vector:    &indexVectorFake{},
		batchSize: 64,
	}
}

func (f *indexFixture) usecase() *IndexUseCase {
	return NewIndexUseCase(f.scanner, f.registry, f.extractor, chunkerFake{}, f.embedder, f.vector, f.batchSize)
}

func courseFile(path, hash string) domain.CourseFile {
	parts := strings.SplitN(path, "/", 2)
	return domain.CourseFile{
		Path:     path,
		AbsPath:  "/courses/" + path,
		Filename: parts[len(parts)-1],
		Subject:  parts[0],
		Hash:     hash,
	}
}

func TestScanIndexesNewFiles(t *testing.T) {
	f := newIndexFixture()
	f.scanner.files = []domain.CourseFile{
		courseFile("Algorithmique/cm_tri.pdf", "h1"),
		courseFile("Genie Logiciel/td2.pdf", "h2"),
	}
	f.extractor.texts = map[string]string{
		"/courses/Algorithmique/cm_tri.pdf": "Le tri fusion.|Le tri rapide.",
		"/courses/Genie Logiciel/td2.pdf":   "Exercice sur le pattern MVC.",
	}

	report, err := f.usecase().Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Scanned != 2 || report.Indexed != 2 || report.Chunks != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Skipped != 0 || report.Failed != 0 || report.Removed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if len(f.vector.upserts) != 2 {
		t.Fatalf("expected 2 upsert calls, got %d", len(f.vector.upserts))
	}
	first := f.vector.upserts[0]
	if len(first) != 2 || first[1].ChunkIndex != 1 {
		t.Fatalf("unexpected chunks: %+v", first)
	}
	if first[0].ID != chunkID("Algorithmique/cm_tri.pdf", 0) {
		t.Fatalf("chunk IDs must be derived from file position, got %s", first[0].ID)
	}
	if first[0].Subject != "Algorithmique" || first[0].DocType != domain.DocTypeCM {
		t.Fatalf("unexpected chunk metadata: %+v", first[0])
	}

	if len(f.registry.upserts) != 2 {
		t.Fatalf("expected 2 registry rows, got %d", len(f.registry.upserts))
	}
	row := f.registry.upserts[0]
	if row.Filepath != "Algorithmique/cm_tri.pdf" || row.ChunkCount != 2 || row.SourceHash != "h1" {
		t.Fatalf("unexpected registry row: %+v", row)
	}
	if f.registry.upserts[1].DocType != domain.DocTypeTD {
		t.Fatalf("expected TD classification, got %s", f.registry.upserts[1].DocType)
	}
}

func TestScanSkipsUnchangedFiles(t *testing.T) {
	f := newIndexFixture()
	f.scanner.files = []domain.CourseFile{courseFile("Algorithmique/cm_tri.pdf", "h1")}
	f.registry.known = map[string]string{"Algorithmique/cm_tri.pdf": "h1"}

	report, err := f.usecase().Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Skipped != 1 || report.Indexed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(f.extractor.calls) != 0 {
		t.Fatal("unchanged files must not be re-extracted")
	}
}

func TestScanFullPassReindexesUnchangedFiles(t *testing.T) {
	f := newIndexFixture()
	f.scanner.files = []domain.CourseFile{courseFile("Algorithmique/cm_tri.pdf", "h1")}
	f.registry.known = map[string]string{"Algorithmique/cm_tri.pdf": "h1"}
	f.extractor.texts = map[string]string{"/courses/Algorithmique/cm_tri.pdf": "Le tri fusion."}

	report, err := f.usecase().Scan(context.Background(), true)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Indexed != 1 || report.Skipped != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	// Stale points of the already-indexed file go first.
	if len(f.vector.deletes) != 1 || f.vector.deletes[0][0] != "Algorithmique/cm_tri.pdf" {
		t.Fatalf("expected stale chunks deleted before upsert, got %+v", f.vector.deletes)
	}
	if len(f.vector.upserts) != 1 {
		t.Fatalf("expected 1 upsert call, got %d", len(f.vector.upserts))
	}
}

func TestScanReindexesChangedHash(t *testing.T) {
	f := newIndexFixture()
	f.scanner.files = []domain.CourseFile{courseFile("Algorithmique/cm_tri.pdf", "h2")}
	f.registry.known = map[string]string{"Algorithmique/cm_tri.pdf": "h1"}
	f.extractor.texts = map[string]string{"/courses/Algorithmique/cm_tri.pdf": "Version revisee."}

	report, err := f.usecase().Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Indexed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(f.vector.deletes) != 1 {
		t.Fatalf("changed file must drop stale chunks, got %+v", f.vector.deletes)
	}
	if f.registry.upserts[0].SourceHash != "h2" {
		t.Fatalf("registry must record the new hash, got %+v", f.registry.upserts[0])
	}
}

func TestScanRemovesDeletedFiles(t *testing.T) {
	f := newIndexFixture()
	f.scanner.files = []domain.CourseFile{courseFile("Algorithmique/cm_tri.pdf", "h1")}
	f.registry.known = map[string]string{
		"Algorithmique/cm_tri.pdf":  "h1",
		"Logique/td_prolog.pdf":     "h3",
		"Cloud/annexe_obsolete.pdf": "h2",
	}

	report, err := f.usecase().Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Removed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	want := []string{"Cloud/annexe_obsolete.pdf", "Logique/td_prolog.pdf"}
	if len(f.vector.deletes) != 1 || len(f.vector.deletes[0]) != 2 {
		t.Fatalf("expected one batched delete, got %+v", f.vector.deletes)
	}
	for i, path := range want {
		if f.vector.deletes[0][i] != path {
			t.Fatalf("expected sorted removals %v, got %v", want, f.vector.deletes[0])
		}
	}
	if len(f.registry.deletes) != 2 {
		t.Fatalf("expected 2 registry deletions, got %v", f.registry.deletes)
	}
}

func TestScanRecordsFileWithNoUsableText(t *testing.T) {
	f := newIndexFixture()
	f.scanner.files = []domain.CourseFile{courseFile("Algorithmique/scan_image.pdf", "h1")}
	f.extractor.texts = map[string]string{"/courses/Algorithmique/scan_image.pdf": ""}

	report, err := f.usecase().Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Indexed != 1 || report.Chunks != 0 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(f.vector.upserts) != 0 {
		t.Fatal("empty extraction must not reach the vector store")
	}
	if len(f.registry.upserts) != 1 || f.registry.upserts[0].ChunkCount != 0 {
		t.Fatalf("expected zero-chunk registry row, got %+v", f.registry.upserts)
	}
}

func TestScanContinuesAfterFileFailure(t *testing.T) {
	f := newIndexFixture()
	f.scanner.files = []domain.CourseFile{
		courseFile("Algorithmique/casse.pdf", "h1"),
		courseFile("Algorithmique/cm_tri.pdf", "h2"),
	}
	f.extractor.errOn = "/courses/Algorithmique/casse.pdf"
	f.extractor.texts = map[string]string{"/courses/Algorithmique/cm_tri.pdf": "Le tri fusion."}

	report, err := f.usecase().Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Failed != 1 || report.Indexed != 1 {
		t.Fatalf("one broken file must not abort the pass: %+v", report)
	}
}

func TestScanStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newIndexFixture()
	f.scanner.files = []domain.CourseFile{
		courseFile("Algorithmique/casse.pdf", "h1"),
		courseFile("Algorithmique/cm_tri.pdf", "h2"),
	}
	f.extractor.errOn = "/courses/Algorithmique/casse.pdf"
	f.extractor.cancel = cancel

	_, err := f.usecase().Scan(ctx, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.extractor.calls) != 1 {
		t.Fatalf("cancelled scan must not touch further files, got %v", f.extractor.calls)
	}
}

func TestScanEmbedsInBatches(t *testing.T) {
	f := newIndexFixture()
	f.batchSize = 2
	f.scanner.files = []domain.CourseFile{courseFile("Algorithmique/cm_tri.pdf", "h1")}
	f.extractor.texts = map[string]string{"/courses/Algorithmique/cm_tri.pdf": "a|b|c|d|e"}

	report, err := f.usecase().Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Chunks != 5 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(f.embedder.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(f.embedder.batches))
	}
	sizes := []int{len(f.embedder.batches[0]), len(f.embedder.batches[1]), len(f.embedder.batches[2])}
	if sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Fatalf("expected batch sizes [2 2 1], got %v", sizes)
	}
}

func TestScanFailsFileOnVectorCountMismatch(t *testing.T) {
	f := newIndexFixture()
	f.embedder.short = true
	f.scanner.files = []domain.CourseFile{courseFile("Algorithmique/cm_tri.pdf", "h1")}
	f.extractor.texts = map[string]string{"/courses/Algorithmique/cm_tri.pdf": "a|b|c"}

	report, err := f.usecase().Scan(context.Background(), false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Failed != 1 || report.Indexed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(f.vector.upserts) != 0 {
		t.Fatal("mismatched embedding batch must not be written")
	}
}
