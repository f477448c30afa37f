package domain

import "testing"

func TestDedupeSourcesKeepsFirstPerFilename(t *testing.T) {
	candidates := []Candidate{
		{Chunk: Chunk{Filename: "cm_tri.pdf", Subject: "Algorithmique", DocType: DocTypeCM}},
		{Chunk: Chunk{Filename: "td2.pdf", Subject: "Algorithmique", DocType: DocTypeTD}},
		{Chunk: Chunk{Filename: "cm_tri.pdf", Subject: "Algorithmique", DocType: DocTypeCM}},
	}

	refs := DedupeSources(candidates)
	if len(refs) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(refs))
	}
	if refs[0].Filename != "cm_tri.pdf" || refs[1].Filename != "td2.pdf" {
		t.Fatalf("ranking order must survive deduplication, got %+v", refs)
	}
	if refs[0].Subject != "Algorithmique" || refs[0].DocType != DocTypeCM {
		t.Fatalf("unexpected source ref: %+v", refs[0])
	}
}

func TestDedupeSourcesEmptyInput(t *testing.T) {
	if refs := DedupeSources(nil); len(refs) != 0 {
		t.Fatalf("expected no sources, got %+v", refs)
	}
}

func TestSearchFilterMatches(t *testing.T) {
	chunk := Chunk{Subject: "Algorithmique"}

	if !(SearchFilter{}).Matches(chunk) {
		t.Fatal("empty filter must match everything")
	}
	if !(SearchFilter{Subjects: []string{"Cloud & Reseaux", "Algorithmique"}}).Matches(chunk) {
		t.Fatal("expected subject match")
	}
	if (SearchFilter{Subjects: []string{"Cloud & Reseaux"}}).Matches(chunk) {
		t.Fatal("expected subject mismatch")
	}
}
