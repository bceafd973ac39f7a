package vectorstore

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ragledger/internal/models"
)

// Backend is a managed or embedded similarity index.
type Backend interface {
	// EnsureIndex creates the index with a cosine metric when absent and
	// fails if an existing index has another dimension.
	EnsureIndex(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []models.Record) error
	// Query returns at most topK matches in descending cosine similarity.
	Query(ctx context.Context, vector []float32, topK int, filter models.Filter) ([]models.Match, error)
	DeleteByFile(ctx context.Context, fileID string) error
	Ping(ctx context.Context) error
	Name() string
	Close() error
}

// Store adds batching, dimension checks and top_k validation on top of a Backend.
type Store struct {
	backend      Backend
	dimension    int
	batchSize    int
	snippetChars int
	logger       zerolog.Logger
}

type Option func(*Store)

func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithSnippetChars sets how many characters of chunk text are kept in metadata; 0 keeps everything.
func WithSnippetChars(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.snippetChars = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func New(backend Backend, dimension int, opts ...Option) *Store {
	s := &Store{
		backend:      backend,
		dimension:    dimension,
		batchSize:    models.UpsertBatchSize,
		snippetChars: models.DefaultSnippetChars,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "vectorstore").Str("backend", backend.Name()).Logger()
	return s
}

func (s *Store) Name() string   { return s.backend.Name() }
func (s *Store) Dimension() int { return s.dimension }

func (s *Store) Init(ctx context.Context) error {
	if s.dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", models.ErrIndex, s.dimension)
	}
	if err := s.backend.EnsureIndex(ctx, s.dimension); err != nil {
		return fmt.Errorf("%w: %w", models.ErrIndex, err)
	}
	s.logger.Info().Int("dimension", s.dimension).Msg("Vector index ready")
	return nil
}

// Records pairs chunks with their vectors. vectors[i] belongs to chunks[i].
func (s *Store) Records(chunks []models.Chunk, vectors [][]float32) ([]models.Record, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", models.ErrIndex, len(chunks), len(vectors))
	}
	records := make([]models.Record, len(chunks))
	for i, c := range chunks {
		records[i] = models.Record{
			ID:     c.ID,
			Vector: vectors[i],
			Metadata: models.Metadata{
				Filename: c.Filename,
				FileID:   c.FileID,
				ChunkID:  c.ID,
				Page:     c.Page,
				FileType: c.FileType,
				Content:  Truncate(c.Content, s.snippetChars),
			},
		}
	}
	return records, nil
}

// Upsert submits records in sequential sub-batches. Batches sent before a
// failure stay persisted.
func (s *Store) Upsert(ctx context.Context, records []models.Record) error {
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("%w: record %s has dimension %d, index expects %d", models.ErrIndex, r.ID, len(r.Vector), s.dimension)
		}
	}

	for start, n := 0, 0; start < len(records); start, n = start+s.batchSize, n+1 {
		batch := records[start:min(start+s.batchSize, len(records))]
		if err := s.backend.Upsert(ctx, batch); err != nil {
			s.logger.Error().Err(err).Int("batch", n).Int("persisted", start).Msg("Upsert failed")
			return fmt.Errorf("%w: upsert batch %d (records %d-%d): %w", models.ErrIndex, n, start, start+len(batch)-1, err)
		}
		s.logger.Debug().Int("batch", n).Int("size", len(batch)).Msg("Upserted batch")
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter models.Filter) ([]models.Match, error) {
	if topK < models.MinTopK || topK > models.MaxTopK {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidTopK, topK)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, index expects %d", models.ErrIndex, len(vector), s.dimension)
	}

	matches, err := s.backend.Query(ctx, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIndex, err)
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Purge removes every record of a file.
func (s *Store) Purge(ctx context.Context, fileID string) error {
	if err := s.backend.DeleteByFile(ctx, fileID); err != nil {
		return fmt.Errorf("%w: purge %s: %w", models.ErrIndex, fileID, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Truncate keeps at most n runes of s. n == 0 means no limit.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
