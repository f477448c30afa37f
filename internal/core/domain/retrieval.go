package domain

type SearchFilter struct {
	Subjects []string
}

func (f SearchFilter) Empty() bool {
	return len(f.Subjects) == 0
}

// Matches reports whether a chunk passes the subject filter.
func (f SearchFilter) Matches(c Chunk) bool {
	if f.Empty() {
		return true
	}
	for _, s := range f.Subjects {
		if s == c.Subject {
			return true
		}
	}
	return false
}

type Origin string

const (
	OriginSemantic Origin = "semantic"
	OriginLexical  Origin = "lexical"
	OriginBoth     Origin = "both"
)

// Candidate is a chunk moving through the retrieval pipeline together
// with its running scores.
type Candidate struct {
	Chunk       Chunk   `json:"chunk"`
	Score       float64 `json:"score"`
	Origin      Origin  `json:"origin"`
	RerankScore float64 `json:"rerank_score,omitempty"`
	Compressed  bool    `json:"compressed,omitempty"`
}

// RetrievalResult is what the retrieval stages hand to generation.
type RetrievalResult struct {
	Candidates     []Candidate
	RewrittenQuery string
	Steps          []string
}

// SourceRef is a deduplicated citation shown to the user.
type SourceRef struct {
	Subject  string  `json:"matiere"`
	DocType  DocType `json:"doc_type"`
	Filename string  `json:"filename"`
}

// DedupeSources keeps the first occurrence per filename, preserving
// ranking order.
func DedupeSources(candidates []Candidate) []SourceRef {
	seen := make(map[string]struct{}, len(candidates))
	refs := make([]SourceRef, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Chunk.Filename]; ok {
			continue
		}
		seen[c.Chunk.Filename] = struct{}{}
		refs = append(refs, SourceRef{
			Subject:  c.Chunk.Subject,
			DocType:  c.Chunk.DocType,
			Filename: c.Chunk.Filename,
		})
	}
	return refs
}
