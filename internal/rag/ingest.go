package rag

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"ragledger/internal/blob"
	"ragledger/internal/models"
	"ragledger/internal/parser"
)

type IngestOption func(*Ingestor)

// WithPurge removes a document's previous chunks before new ones are written.
func WithPurge(purge bool) IngestOption {
	return func(i *Ingestor) { i.purge = purge }
}

// WithTempDir sets where downloaded documents are staged.
func WithTempDir(dir string) IngestOption {
	return func(i *Ingestor) { i.tempDir = dir }
}

func WithIngestLogger(logger zerolog.Logger) IngestOption {
	return func(i *Ingestor) { i.logger = logger }
}

// Ingestor turns a stored upload into indexed chunks.
type Ingestor struct {
	blobs    blob.Store
	parser   parser.Parser
	chunker  Chunker
	embedder Embedder
	index    Index
	purge    bool
	tempDir  string
	logger   zerolog.Logger
}

func NewIngestor(blobs blob.Store, p parser.Parser, c Chunker, e Embedder, idx Index, opts ...IngestOption) *Ingestor {
	i := &Ingestor{
		blobs:    blobs,
		parser:   p,
		chunker:  c,
		embedder: e,
		index:    idx,
		purge:    true,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest fetches, extracts, chunks, embeds and upserts one document and
// returns the number of chunks written.
func (i *Ingestor) Ingest(ctx context.Context, fileID string) (int, error) {
	if strings.TrimSpace(fileID) == "" || strings.ContainsAny(fileID, `/\`) {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidFileID, fileID)
	}
	logger := i.logger.With().Str("file_id", fileID).Logger()

	doc, err := i.fetch(ctx, fileID)
	if err != nil {
		logger.Error().Err(err).Str("stage", "fetch").Msg("Ingestion failed")
		return 0, err
	}
	defer func() {
		if err := blob.Remove(doc.Path); err != nil {
			logger.Warn().Err(err).Str("path", doc.Path).Msg("Failed to remove temp file")
		}
	}()
	logger = logger.With().Str("filename", doc.Filename).Logger()
	logger.Info().Str("stage", "fetch").Str("type", string(doc.FileType)).Msg("Downloaded document")

	pages, err := i.parser.Parse(ctx, doc)
	if err != nil {
		logger.Error().Err(err).Str("stage", "extract").Msg("Ingestion failed")
		return 0, err
	}
	logger.Debug().Str("stage", "extract").Int("pages", len(pages)).Msg("Extracted text")

	chunks := i.chunker.ChunkDocument(doc, pages)
	logger.Debug().Str("stage", "chunk").Int("chunks", len(chunks)).Msg("Chunked text")

	if len(chunks) == 0 {
		if err := i.purgePrevious(ctx, logger, fileID); err != nil {
			return 0, err
		}
		logger.Warn().Str("stage", "chunk").Msg("No text extracted, nothing to index")
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Content
	}
	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		logger.Error().Err(err).Str("stage", "embed").Msg("Ingestion failed")
		return 0, err
	}
	if len(vectors) != len(chunks) {
		err := fmt.Errorf("%w: got %d vectors for %d chunks", models.ErrEmbedding, len(vectors), len(chunks))
		logger.Error().Err(err).Str("stage", "embed").Msg("Ingestion failed")
		return 0, err
	}

	records, err := i.index.Records(chunks, vectors)
	if err != nil {
		logger.Error().Err(err).Str("stage", "upsert").Msg("Ingestion failed")
		return 0, err
	}

	// previous records go only once everything to replace them is ready
	if err := i.purgePrevious(ctx, logger, fileID); err != nil {
		return 0, err
	}
	if err := i.index.Upsert(ctx, records); err != nil {
		logger.Error().Err(err).Str("stage", "upsert").Msg("Ingestion failed")
		return 0, err
	}

	logger.Info().Str("stage", "upsert").Int("chunks", len(records)).Msg("Document ingested")
	return len(records), nil
}

func (i *Ingestor) purgePrevious(ctx context.Context, logger zerolog.Logger, fileID string) error {
	if !i.purge {
		return nil
	}
	if err := i.index.Purge(ctx, fileID); err != nil {
		logger.Error().Err(err).Str("stage", "purge").Msg("Ingestion failed")
		return err
	}
	return nil
}

// fetch downloads the first object stored for fileID.
func (i *Ingestor) fetch(ctx context.Context, fileID string) (models.Document, error) {
	objects, err := i.blobs.List(ctx, blob.DocumentPrefix(fileID))
	if err != nil {
		return models.Document{}, err
	}
	if len(objects) == 0 {
		return models.Document{}, fmt.Errorf("%w: file %s", models.ErrNotFound, fileID)
	}

	key := objects[0].Key
	filename := path.Base(key)
	ft, err := models.ParseFileType(path.Ext(filename))
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: %w", models.ErrExtraction, err)
	}

	p, err := i.blobs.Download(ctx, key, i.tempDir)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{FileID: fileID, Filename: filename, FileType: ft, Path: p}, nil
}
