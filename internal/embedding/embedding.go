package embedding

import (
	"context"
	"fmt"

	"ragledger/internal/config"
	"ragledger/internal/models"
)

// Embedder converts texts to vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
	Ping(ctx context.Context) error
}

// NewEmbedder picks the provider named in the config.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg.OpenAI.APIKey,
			WithModel(cfg.Embedding.Model),
			WithDimension(cfg.Embedding.Dimension),
			WithBatchSize(cfg.Embedding.BatchSize),
			WithBaseURL(cfg.OpenAI.BaseURL),
		)
	case "ollama":
		return NewOllamaEmbedder(&cfg.Embedding)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrConfiguration, cfg.Embedding.Provider)
	}
}

func checkInputs(texts []string) error {
	for i, t := range texts {
		if t == "" {
			return fmt.Errorf("%w: input %d is empty", models.ErrEmbedding, i)
		}
	}
	return nil
}

// batches splits texts into consecutive slices of at most size elements.
func batches(texts []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(texts); start += size {
		out = append(out, texts[start:min(start+size, len(texts))])
	}
	return out
}
