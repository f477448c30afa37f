package domain

import "strings"

type DocType string

const (
	DocTypeCM         DocType = "CM"
	DocTypeTD         DocType = "TD"
	DocTypeTP         DocType = "TP"
	DocTypeExam       DocType = "Examen"
	DocTypeCorrection DocType = "Corrige"
	DocTypeDocument   DocType = "Document"
)

var (
	lectureKeywords    = []string{"cm", "cours", "slide", "ch1", "ch2", "ch3", "ch4", "ch5", "ch6", "ch7"}
	examKeywords       = []string{"exam", "ct ", "ct_", "cc_", "annale"}
	correctionKeywords = []string{"corr", "cor", "solution"}
)

// DocTypeFromFilename classifies a course file by naming conventions.
// Order matters: "td_corrige.pdf" is a TD, not a Corrige.
func DocTypeFromFilename(filename string) DocType {
	lower := strings.ToLower(filename)
	if containsAny(lower, lectureKeywords) {
		return DocTypeCM
	}
	if strings.Contains(lower, "td") {
		return DocTypeTD
	}
	if strings.Contains(lower, "tp") {
		return DocTypeTP
	}
	if containsAny(lower, examKeywords) {
		return DocTypeExam
	}
	if containsAny(lower, correctionKeywords) {
		return DocTypeCorrection
	}
	return DocTypeDocument
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Chunk is one indexed slice of a course document. The ID is stable
// across re-indexing runs of an unchanged file.
type Chunk struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Subject    string  `json:"subject"`
	DocType    DocType `json:"doc_type"`
	Filename   string  `json:"filename"`
	Filepath   string  `json:"filepath"`
	ChunkIndex int     `json:"chunk_index"`
	SourceHash string  `json:"source_hash"`
}
