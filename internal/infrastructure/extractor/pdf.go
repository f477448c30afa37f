package extractor

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDF extracts one text page per document page.
type PDF struct{}

func NewPDF() *PDF {
	return &PDF{}
}

func (*PDF) Supports(path string) bool {
	return hasExtension(path, ".pdf")
}

func (*PDF) ExtractPages(ctx context.Context, path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
