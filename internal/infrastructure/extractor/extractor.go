// Package extractor turns course files into plain text for chunking.
// Short lines (page numbers, bullets debris) and near-empty pages are
// filtered out before the text reaches the splitter.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Backend extracts the raw pages of one file format.
type Backend interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
	Supports(path string) bool
}

type Composite struct {
	backends      []Backend
	minPageLength int
	minLineLength int
}

func NewComposite(minPageLength, minLineLength int, backends ...Backend) *Composite {
	if minPageLength <= 0 {
		minPageLength = 50
	}
	if minLineLength <= 0 {
		minLineLength = 3
	}
	return &Composite{
		backends:      backends,
		minPageLength: minPageLength,
		minLineLength: minLineLength,
	}
}

func (c *Composite) Supports(path string) bool {
	for _, b := range c.backends {
		if b.Supports(path) {
			return true
		}
	}
	return false
}

// Extract joins the surviving pages with a blank line so that page
// boundaries stay preferred split points for the chunker.
func (c *Composite) Extract(ctx context.Context, path string) (string, error) {
	for _, b := range c.backends {
		if !b.Supports(path) {
			continue
		}
		pages, err := b.ExtractPages(ctx, path)
		if err != nil {
			return "", err
		}

		kept := make([]string, 0, len(pages))
		for _, page := range pages {
			page = strings.TrimSpace(c.filterLines(page))
			if utf8.RuneCountInString(page) > c.minPageLength {
				kept = append(kept, page)
			}
		}
		return strings.Join(kept, "\n\n"), nil
	}
	return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
}

func (c *Composite) filterLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if utf8.RuneCountInString(strings.TrimSpace(line)) > c.minLineLength {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func hasExtension(path string, extensions ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
