package domain

import "time"

// CourseFile is a file found on disk during a corpus scan, before any
// extraction happens. Path is relative to the courses root and serves
// as the file's identity in the index; AbsPath is what extractors open.
// Subject is already mapped to its display name.
type CourseFile struct {
	Path     string `json:"path"`
	AbsPath  string `json:"-"`
	Filename string `json:"filename"`
	Subject  string `json:"subject"`
	Hash     string `json:"hash"`
}

// IndexedFile is the registry row tracking one course file's place in
// the index. SourceHash drives incremental re-indexing.
type IndexedFile struct {
	Filepath   string    `json:"filepath"`
	Filename   string    `json:"filename"`
	Subject    string    `json:"subject"`
	DocType    DocType   `json:"doc_type"`
	SourceHash string    `json:"source_hash"`
	ChunkCount int       `json:"chunk_count"`
	IndexedAt  time.Time `json:"indexed_at"`
}

type SubjectStats struct {
	Subject string `json:"matiere"`
	Files   int    `json:"files"`
	Chunks  int    `json:"chunks"`
}

type IndexStats struct {
	Files      int            `json:"files"`
	Chunks     int            `json:"chunks"`
	BySubject  []SubjectStats `json:"by_subject"`
	LastUpdate time.Time      `json:"last_update"`
}

// ScanReport summarises one indexing pass over the courses directory.
type ScanReport struct {
	Scanned  int     `json:"scanned"`
	Indexed  int     `json:"indexed"`
	Skipped  int     `json:"skipped"`
	Removed  int     `json:"removed"`
	Chunks   int     `json:"chunks"`
	Failed   int     `json:"failed"`
	Duration float64 `json:"duration_seconds"`
}
