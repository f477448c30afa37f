// Package corpusfs walks the local courses directory and hashes every
// supported file for incremental indexing.
package corpusfs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

var defaultExtensions = []string{".pdf", ".txt", ".md", ".csv", ".xlsx"}

type Scanner struct {
	root       string
	extensions map[string]struct{}
	excluded   []string
	subjects   map[string]string
}

// NewScanner lists files under root. The first directory component of a
// file's relative path names its subject, mapped through subjectNames.
func NewScanner(root string, extensions, excludedPatterns []string, subjectNames map[string]string) *Scanner {
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &Scanner{
		root:       root,
		extensions: exts,
		excluded:   excludedPatterns,
		subjects:   subjectNames,
	}
}

func (s *Scanner) ListFiles(ctx context.Context) ([]domain.CourseFile, error) {
	var out []domain.CourseFile
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := s.extensions[ext]; !ok {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if s.isExcluded(rel, d.Name()) {
			return nil
		}

		hash, err := fileMD5(path)
		if err != nil {
			// Unreadable files are left out of this pass and retried
			// on the next one.
			return nil
		}

		out = append(out, domain.CourseFile{
			Path:     rel,
			AbsPath:  path,
			Filename: d.Name(),
			Subject:  s.subjectFor(rel),
			Hash:     hash,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return out, nil
}

func (s *Scanner) subjectFor(rel string) string {
	folder := rel
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		folder = rel[:i]
	}
	if name, ok := s.subjects[folder]; ok {
		return name
	}
	return folder
}

// isExcluded matches each pattern against the relative path, the base
// name and every path segment, so ".*" also hides files inside hidden
// directories.
func (s *Scanner) isExcluded(rel, base string) bool {
	segments := strings.Split(rel, "/")
	for _, pattern := range s.excluded {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		for _, segment := range segments {
			if ok, _ := filepath.Match(pattern, segment); ok {
				return true
			}
		}
	}
	return false
}

// Content hash for change detection only.
func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
