package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func sentence(letter rune, length int) string {
	return strings.Repeat(string(letter), length-2) + ". "
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 1000 {
		t.Fatalf("ChunkSize = %d, want 1000", s.ChunkSize)
	}
	if s.Overlap != 0 {
		t.Fatalf("Overlap = %d, want 0", s.Overlap)
	}

	s = NewSplitter(100, 150)
	if s.Overlap != 25 {
		t.Fatalf("oversized overlap not clamped, got %d", s.Overlap)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s := NewSplitter(1000, 200)
	if got := s.Split(""); got != nil {
		t.Fatalf("Split(\"\") = %v, want nil", got)
	}
	if got := s.Split("  \n\t "); got != nil {
		t.Fatalf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("Un cours court.\n\nDeux paragraphes.")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0] != "Un cours court.\n\nDeux paragraphes." {
		t.Fatalf("unexpected chunk %q", chunks[0])
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("aaaa ", 120) // 600 runes
	para2 := strings.Repeat("bbbb ", 120)
	s := NewSplitter(1000, 0)

	chunks := s.Split(para1 + "\n\n" + para2)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0] != strings.TrimSpace(para1) {
		t.Fatalf("first chunk crosses paragraph boundary: %q", chunks[0][:40])
	}
	if chunks[1] != strings.TrimSpace(para2) {
		t.Fatalf("second chunk crosses paragraph boundary: %q", chunks[1][:40])
	}
}

func TestSplitOverlapCarriesTrailingSentences(t *testing.T) {
	s1 := sentence('a', 100)
	s2 := sentence('b', 100)
	s3 := sentence('c', 100)
	s4 := sentence('d', 100)
	s := NewSplitter(250, 120)

	chunks := s.Split(s1 + s2 + s3 + s4)
	want := []string{
		strings.TrimSpace(s1 + s2),
		strings.TrimSpace(s2 + s3),
		strings.TrimSpace(s3 + s4),
	}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d: %q", len(chunks), len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, chunks[i][:20], want[i][:20])
		}
	}
}

func TestSplitCutsAtWordBoundaries(t *testing.T) {
	text := strings.Repeat("mot ", 1200)
	s := NewSplitter(1000, 0)

	chunks := s.Split(text)
	if len(chunks) < 4 {
		t.Fatalf("got %d chunks, want at least 4", len(chunks))
	}
	for i, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > 1000 {
			t.Fatalf("chunk %d has %d runes", i, utf8.RuneCountInString(chunk))
		}
		for _, field := range strings.Fields(chunk) {
			if field != "mot" {
				t.Fatalf("chunk %d cut inside a word: %q", i, field)
			}
		}
	}
}

func TestSplitFallsBackToFixedWindows(t *testing.T) {
	intro := "Petit paragraphe d'introduction."
	blob := strings.Repeat("x", 2500)
	s := NewSplitter(1000, 200)

	chunks := s.Split(intro + "\n\n" + blob)
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4: lens %v", len(chunks), chunkLens(chunks))
	}
	if chunks[0] != intro {
		t.Fatalf("first chunk = %q, want intro paragraph", chunks[0])
	}
	for i, chunk := range chunks[1:] {
		if utf8.RuneCountInString(chunk) > 1000 {
			t.Fatalf("window %d has %d runes", i, utf8.RuneCountInString(chunk))
		}
	}
	// Windows advance by 800 and the final one absorbs the tail.
	if last := chunks[len(chunks)-1]; last != strings.Repeat("x", 900) {
		t.Fatalf("last window has %d runes, want 900", utf8.RuneCountInString(last))
	}
}

func chunkLens(chunks []string) []int {
	lens := make([]int, len(chunks))
	for i, c := range chunks {
		lens[i] = utf8.RuneCountInString(c)
	}
	return lens
}
