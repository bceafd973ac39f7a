package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"ragledger/internal/config"
	"ragledger/internal/models"
)

// OllamaEmbedder runs a local embedding model through langchaingo.
type OllamaEmbedder struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.EmbeddingConfig) (*OllamaEmbedder, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize ollama: %w", models.ErrEmbedding, err)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create embedder: %w", models.ErrEmbedding, err)
	}
	return &OllamaEmbedder{embedder: embedder, model: cfg.Model, dimension: cfg.Dimension}, nil
}

func (e *OllamaEmbedder) Name() string   { return "ollama" }
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := checkInputs(texts); err != nil {
		return nil, err
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", models.ErrEmbedding, len(texts), len(vectors))
	}
	return vectors, nil
}

// Ping embeds a single word.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	if _, err := e.embedder.EmbedQuery(ctx, "ping"); err != nil {
		return fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	return nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
