package rag

import (
	"context"

	"ragledger/internal/models"
)

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits extracted pages into chunks.
type Chunker interface {
	ChunkDocument(doc models.Document, pages []models.Page) []models.Chunk
}

// Index is the part of the vector store the ingestion path needs.
type Index interface {
	Records(chunks []models.Chunk, vectors [][]float32) ([]models.Record, error)
	Upsert(ctx context.Context, records []models.Record) error
	Purge(ctx context.Context, fileID string) error
}

// Searcher runs similarity queries.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int, filter models.Filter) ([]models.Match, error)
}

// Answerer produces an answer grounded on the given contexts.
type Answerer interface {
	Generate(ctx context.Context, query string, contexts []string) (string, error)
}
