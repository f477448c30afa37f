// Package chunking splits extracted text into overlapping chunks,
// preferring paragraph, line, sentence and word boundaries in that
// order before cutting mid-word.
package chunking

import (
	"strings"
	"unicode/utf8"
)

var separators = []string{"\n\n", "\n", ". ", " "}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitWith(text, separators)
}

// splitWith cuts text on the coarsest separator present, recursing into
// finer separators for pieces still larger than ChunkSize.
func (s *Splitter) splitWith(text string, seps []string) []string {
	if len(seps) == 0 {
		return s.hardCut(text)
	}

	separator := seps[0]
	rest := seps[1:]
	if !strings.Contains(text, separator) {
		return s.splitWith(text, rest)
	}

	// SplitAfter keeps the separator attached, so joining pieces back
	// reconstructs the original text.
	pieces := strings.SplitAfter(text, separator)

	var out []string
	var pending []string
	for _, piece := range pieces {
		if runeLen(piece) <= s.ChunkSize {
			pending = append(pending, piece)
			continue
		}
		out = append(out, s.merge(pending)...)
		pending = nil
		out = append(out, s.splitWith(piece, rest)...)
	}
	return append(out, s.merge(pending)...)
}

// merge packs consecutive pieces into chunks up to ChunkSize, carrying
// roughly Overlap runes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		chunk := strings.TrimSpace(strings.Join(current, ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		pieceLen := runeLen(piece)
		if currentLen > 0 && currentLen+pieceLen > s.ChunkSize {
			flush()
			for len(current) > 0 && (currentLen > s.Overlap || currentLen+pieceLen > s.ChunkSize) {
				currentLen -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		currentLen += pieceLen
	}
	if len(current) > 0 {
		flush()
	}
	return chunks
}

// hardCut is the last resort for text without any separator: fixed rune
// windows advancing by ChunkSize minus Overlap.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
