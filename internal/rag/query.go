package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"ragledger/internal/models"
)

// Querier answers questions from indexed chunks.
type Querier struct {
	embedder Embedder
	searcher Searcher
	answerer Answerer
	logger   zerolog.Logger
}

func NewQuerier(e Embedder, s Searcher, a Answerer, logger zerolog.Logger) *Querier {
	return &Querier{embedder: e, searcher: s, answerer: a, logger: logger}
}

func (q *Querier) Query(ctx context.Context, query string, topK int, filter models.Filter) (*models.Answer, error) {
	if topK < models.MinTopK || topK > models.MaxTopK {
		return nil, models.ErrInvalidTopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, models.ErrInvalidQuery
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	vectors, err := q.embedder.Embed(ctx, []string{query})
	if err != nil {
		q.logger.Error().Err(err).Str("stage", "embed").Msg("Query failed")
		return nil, err
	}
	if len(vectors) != 1 {
		err := fmt.Errorf("%w: got %d vectors for 1 query", models.ErrEmbedding, len(vectors))
		q.logger.Error().Err(err).Str("stage", "embed").Msg("Query failed")
		return nil, err
	}

	matches, err := q.searcher.Search(ctx, vectors[0], topK, filter)
	if err != nil {
		q.logger.Error().Err(err).Str("stage", "search").Msg("Query failed")
		return nil, err
	}

	// keep the index's order, most similar first
	contexts := make([]string, 0, len(matches))
	sources := make([]models.Source, 0, len(matches))
	for _, m := range matches {
		contexts = append(contexts, m.Metadata.Content)
		sources = append(sources, models.SourceFromMatch(m))
	}

	answer := models.NoContextAnswer
	if len(contexts) > 0 {
		answer, err = q.answerer.Generate(ctx, query, contexts)
		if err != nil {
			q.logger.Error().Err(err).Str("stage", "generate").Msg("Query failed")
			return nil, err
		}
	}

	q.logger.Info().Int("top_k", topK).Int("sources", len(sources)).Msg("Answered query")
	return &models.Answer{Answer: answer, Sources: sources, Query: query}, nil
}
