// Package lexical holds an in-process BM25 index over the course chunks,
// rebuilt from the vector store whenever the corpus changes.
package lexical

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenPattern = regexp.MustCompile(`[a-zàâäéèêëïîôùûüÿçœæ0-9]+`)

// French function words carry no lexical signal for course search.
var stopWords = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "de": {}, "du": {}, "des": {},
	"un": {}, "une": {}, "et": {}, "est": {}, "en": {}, "que": {},
	"qui": {}, "dans": {}, "pour": {}, "par": {}, "sur": {}, "au": {},
	"aux": {}, "ce": {}, "ces": {}, "son": {}, "sa": {}, "ses": {},
	"il": {}, "elle": {}, "nous": {}, "vous": {}, "ils": {}, "elles": {},
	"ne": {}, "pas": {}, "plus": {}, "se": {}, "ou": {}, "mais": {},
	"avec": {}, "sont": {}, "ont": {}, "etre": {}, "avoir": {}, "a": {},
	"d": {}, "l": {}, "qu": {}, "n": {}, "c": {}, "je": {}, "tu": {},
	"me": {}, "te": {}, "on": {}, "leur": {}, "entre": {}, "soit": {},
	"cette": {}, "tout": {}, "tous": {}, "peut": {}, "comme": {},
	"aussi": {}, "alors": {}, "si": {}, "bien": {}, "fait": {},
	"faire": {}, "dit": {}, "donc": {}, "tres": {}, "meme": {},
	"sans": {}, "car": {}, "apres": {}, "avant": {}, "ici": {},
	"encore": {}, "deux": {}, "autre": {}, "autres": {},
}

func tokenize(s string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(s), -1)
	out := make([]string, 0, len(raw))
	for _, token := range raw {
		if utf8.RuneCountInString(token) <= 1 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		out = append(out, token)
	}
	return out
}

type indexedDoc struct {
	chunk  domain.Chunk
	terms  map[string]int
	length int
}

// Index is safe for concurrent search while a rebuild is in flight; the
// rebuilt snapshot replaces the old one in a single swap.
type Index struct {
	mu       sync.RWMutex
	docs     []indexedDoc
	df       map[string]int
	totalLen int
}

func NewIndex() *Index {
	return &Index{df: make(map[string]int)}
}

func (ix *Index) Rebuild(chunks []domain.Chunk) {
	docs := make([]indexedDoc, 0, len(chunks))
	df := make(map[string]int, 1024)
	total := 0

	for _, chunk := range chunks {
		tokens := tokenize(chunk.Text)
		terms := make(map[string]int, len(tokens))
		for _, token := range tokens {
			terms[token]++
		}
		for token := range terms {
			df[token]++
		}
		docs = append(docs, indexedDoc{chunk: chunk, terms: terms, length: len(tokens)})
		total += len(tokens)
	}

	ix.mu.Lock()
	ix.docs = docs
	ix.df = df
	ix.totalLen = total
	ix.mu.Unlock()
}

func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search scores filter-matching documents against the query with BM25.
// Document frequencies and average length stay corpus-wide so that a
// subject filter narrows the candidates without reshaping the statistics.
func (ix *Index) Search(query string, limit int, filter domain.SearchFilter) []domain.Candidate {
	tokens := tokenize(query)
	if len(tokens) == 0 || limit <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docs)
	if n == 0 {
		return nil
	}
	avgdl := 1.0
	if ix.totalLen > 0 {
		avgdl = float64(ix.totalLen) / float64(n)
	}

	var out []domain.Candidate
	for _, doc := range ix.docs {
		if !filter.Matches(doc.chunk) {
			continue
		}
		score := 0.0
		for _, token := range tokens {
			tf := doc.terms[token]
			if tf == 0 {
				continue
			}
			df := float64(ix.df[token])
			idf := math.Log((float64(n)-df+0.5)/(df+0.5) + 1)
			norm := 1 - bm25B + bm25B*float64(doc.length)/avgdl
			score += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
		if score > 0 {
			out = append(out, domain.Candidate{
				Chunk:  doc.chunk,
				Score:  score,
				Origin: domain.OriginLexical,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Chunk.Filepath != out[j].Chunk.Filepath {
			return out[i].Chunk.Filepath < out[j].Chunk.Filepath
		}
		if out[i].Chunk.ChunkIndex != out[j].Chunk.ChunkIndex {
			return out[i].Chunk.ChunkIndex < out[j].Chunk.ChunkIndex
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
