package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// Text reads UTF-8 text files as a single page.
type Text struct{}

func NewText() *Text {
	return &Text{}
}

func (*Text) Supports(path string) bool {
	return hasExtension(path, ".txt", ".md", ".csv")
}

func (*Text) ExtractPages(_ context.Context, path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("not valid utf-8: %s", filepath.Base(path))
	}
	return []string{string(raw)}, nil
}
