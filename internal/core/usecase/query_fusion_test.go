package usecase

import (
	"math"
	"testing"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

func defaultFusionTuning() domain.PipelineTuning {
	return domain.PipelineTuning{RRFConstant: 60, SemanticWeight: 0.6, LexicalWeight: 0.4}
}

func TestFuseBothArmsOutrankSingleArm(t *testing.T) {
	c1 := makeCandidate("c1", "a.pdf", "tri rapide")
	c2 := makeCandidate("c2", "b.pdf", "tri fusion")
	c3 := makeCandidate("c3", "c.pdf", "pile")

	fused := fuseCandidatesRRF(
		[]domain.Candidate{c1, c2},
		[]domain.Candidate{c2, c3},
		defaultFusionTuning(),
	)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused candidates, got %d", len(fused))
	}
	// c2 is second in one arm and first in the other; both contributions
	// together beat either arm's first place.
	if fused[0].Chunk.ID != "c2" || fused[0].Origin != domain.OriginBoth {
		t.Fatalf("expected c2 first with origin both, got %+v", fused[0])
	}
	if fused[1].Chunk.ID != "c1" || fused[1].Origin != domain.OriginSemantic {
		t.Fatalf("expected c1 second with origin semantic, got %+v", fused[1])
	}
	if fused[2].Chunk.ID != "c3" || fused[2].Origin != domain.OriginLexical {
		t.Fatalf("expected c3 third with origin lexical, got %+v", fused[2])
	}

	want := 0.6/62.0 + 0.4/61.0
	if math.Abs(fused[0].Score-want) > 1e-12 {
		t.Fatalf("expected fused score %v, got %v", want, fused[0].Score)
	}
}

func TestFuseWeightsFavorSemanticArm(t *testing.T) {
	s := makeCandidate("s", "a.pdf", "semantique")
	l := makeCandidate("l", "b.pdf", "lexical")

	fused := fuseCandidatesRRF(
		[]domain.Candidate{s},
		[]domain.Candidate{l},
		defaultFusionTuning(),
	)
	if fused[0].Chunk.ID != "s" {
		t.Fatalf("equal ranks must favor the semantic arm, got %+v", fused)
	}
}

func TestFuseTieBreaksByFilepath(t *testing.T) {
	tuning := domain.PipelineTuning{RRFConstant: 60, SemanticWeight: 0.5, LexicalWeight: 0.5}
	x := makeCandidate("x", "b.pdf", "premier")
	y := makeCandidate("y", "a.pdf", "second")

	// Equal weights produce equal scores; the order must not depend on
	// map iteration.
	for i := 0; i < 20; i++ {
		fused := fuseCandidatesRRF([]domain.Candidate{x}, []domain.Candidate{y}, tuning)
		if fused[0].Chunk.ID != "y" {
			t.Fatalf("run %d: expected filepath tie-break to pick a.pdf, got %+v", i, fused[0])
		}
	}
}

func TestFuseIgnoresDuplicateWithinArm(t *testing.T) {
	c1 := makeCandidate("c1", "a.pdf", "tri fusion")
	c2 := makeCandidate("c2", "b.pdf", "tri rapide")

	fused := fuseCandidatesRRF(
		[]domain.Candidate{c1, c1, c2},
		nil,
		defaultFusionTuning(),
	)
	if len(fused) != 2 {
		t.Fatalf("expected duplicate collapsed, got %d candidates", len(fused))
	}
	want := 0.6 / 61.0
	if math.Abs(fused[0].Score-want) > 1e-12 {
		t.Fatalf("duplicate must not accumulate score: want %v, got %v", want, fused[0].Score)
	}
}

func TestTrimCandidates(t *testing.T) {
	cands := []domain.Candidate{
		makeCandidate("c1", "a.pdf", "un"),
		makeCandidate("c2", "b.pdf", "deux"),
		makeCandidate("c3", "c.pdf", "trois"),
	}

	if got := trimCandidates(cands, 0); len(got) != 3 {
		t.Fatalf("limit 0 must keep everything, got %d", len(got))
	}
	if got := trimCandidates(cands, 5); len(got) != 3 {
		t.Fatalf("limit above length must keep everything, got %d", len(got))
	}
	got := trimCandidates(cands, 2)
	if len(got) != 2 || got[0].Chunk.ID != "c1" || got[1].Chunk.ID != "c2" {
		t.Fatalf("expected first two kept, got %+v", got)
	}
}
