package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

func compressFixture() *pipelineFixture {
	f := newPipelineFixture()
	f.tuning = domain.PipelineTuning{
		CompressMinLength:   10,
		CompressMaxContent:  100,
		CompressMinResult:   5,
		CompressMaxPassages: 2,
	}
	return f
}

func TestCompressShortPassagePassesThrough(t *testing.T) {
	f := compressFixture()
	p := f.pipeline()

	cands := []domain.Candidate{makeCandidate("c1", "a.pdf", "LIFO")}
	out := p.compressCandidates(context.Background(), "Qu'est-ce qu'une pile ?", cands)
	if len(out) != 1 || out[0].Chunk.Text != "LIFO" || out[0].Compressed {
		t.Fatalf("short passage must pass through untouched, got %+v", out)
	}
	if len(f.generator.genCalls) != 0 {
		t.Fatal("short passages must not reach the model")
	}
}

func TestCompressReplacesTextAndMarksCandidate(t *testing.T) {
	f := compressFixture()
	f.generator.genResponse = "Le tri fusion est stable."
	p := f.pipeline()

	cands := []domain.Candidate{makeCandidate("c1", "a.pdf", "Le tri fusion compare puis fusionne les sous-tableaux. Il est stable.")}
	out := p.compressCandidates(context.Background(), "Le tri fusion est-il stable ?", cands)
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if out[0].Chunk.Text != "Le tri fusion est stable." || !out[0].Compressed {
		t.Fatalf("expected compressed text, got %+v", out[0])
	}
}

func TestCompressDropsOffTopicPassage(t *testing.T) {
	f := compressFixture()
	f.generator.genResponse = "NON_PERTINENT"
	p := f.pipeline()

	cands := []domain.Candidate{makeCandidate("c1", "a.pdf", "La photosynthese transforme la lumiere en energie.")}
	out := p.compressCandidates(context.Background(), "Qu'est-ce qu'un tri stable ?", cands)
	if len(out) != 0 {
		t.Fatalf("off-topic passage must be dropped, got %+v", out)
	}
}

func TestCompressDropsContentFreeExtraction(t *testing.T) {
	f := compressFixture()
	f.generator.genResponse = "  oui "
	p := f.pipeline()

	cands := []domain.Candidate{makeCandidate("c1", "a.pdf", "Le tri fusion compare puis fusionne les sous-tableaux.")}
	out := p.compressCandidates(context.Background(), "Le tri fusion est-il stable ?", cands)
	if len(out) != 0 {
		t.Fatalf("near-empty extraction must be dropped, got %+v", out)
	}
}

func TestCompressKeepsOriginalOnModelError(t *testing.T) {
	f := compressFixture()
	f.generator.genErr = errors.New("model timeout")
	p := f.pipeline()

	original := "Le tri fusion compare puis fusionne les sous-tableaux."
	cands := []domain.Candidate{makeCandidate("c1", "a.pdf", original)}
	out := p.compressCandidates(context.Background(), "Le tri fusion est-il stable ?", cands)
	if len(out) != 1 || out[0].Chunk.Text != original || out[0].Compressed {
		t.Fatalf("model failure must keep the original passage, got %+v", out)
	}
	if len(f.observer.fallbacks) != 1 || f.observer.fallbacks[0] != StepCompress {
		t.Fatalf("expected compress fallback recorded, got %v", f.observer.fallbacks)
	}
}

func TestCompressSkipsPassagesBeyondCap(t *testing.T) {
	f := compressFixture()
	f.generator.genResponse = "Le tri fusion est stable."
	p := f.pipeline()

	cands := []domain.Candidate{
		makeCandidate("c1", "a.pdf", "Le tri fusion compare puis fusionne les sous-tableaux."),
		makeCandidate("c2", "b.pdf", "Le tri rapide choisit un pivot et partitionne."),
		makeCandidate("c3", "c.pdf", "Le tri par insertion decale les elements un par un."),
	}
	out := p.compressCandidates(context.Background(), "Quels tris sont stables ?", cands)
	if len(out) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(out))
	}
	if len(f.generator.genCalls) != 2 {
		t.Fatalf("only the first two passages go to the model, got %d calls", len(f.generator.genCalls))
	}
	if out[2].Compressed || out[2].Chunk.Text != "Le tri par insertion decale les elements un par un." {
		t.Fatalf("passage beyond the cap must pass through, got %+v", out[2])
	}
}
