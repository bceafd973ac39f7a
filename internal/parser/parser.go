package parser

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"ragledger/internal/models"
)

// Parser turns a fetched document into pages of plain text.
type Parser interface {
	Parse(ctx context.Context, doc models.Document) ([]models.Page, error)
}

type DocumentParser struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *DocumentParser {
	return &DocumentParser{logger: logger.With().Str("component", "parser").Logger()}
}

func (p *DocumentParser) Parse(ctx context.Context, doc models.Document) ([]models.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", models.ErrExtraction, doc.Filename, err)
	}
	defer f.Close()

	var pages []models.Page
	switch doc.FileType {
	case models.FileTypePDF:
		stat, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to stat %s: %w", models.ErrExtraction, doc.Filename, err)
		}
		pages, err = parsePDF(f, stat.Size())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", models.ErrExtraction, doc.Filename, err)
		}
	case models.FileTypeCSV:
		pages, err = parseCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", models.ErrExtraction, doc.Filename, err)
		}
	default:
		return nil, fmt.Errorf("%w: %w: %q", models.ErrExtraction, models.ErrUnsupportedFileType, doc.FileType)
	}

	p.logger.Debug().
		Str("file_id", doc.FileID).
		Str("type", string(doc.FileType)).
		Int("pages", len(pages)).
		Msg("Extracted text")
	return pages, nil
}

var _ Parser = (*DocumentParser)(nil)
