package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/samber/mo"

	"ragledger/internal/models"
)

// parsePDF extracts text page by page. Blank pages are skipped, numbers are 1-indexed.
func parsePDF(r io.ReaderAt, size int64) (pages []models.Page, err error) {
	// the pdf library panics on some malformed xref tables
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("corrupt pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, models.Page{Text: text, Number: mo.Some(i)})
	}
	return pages, nil
}
