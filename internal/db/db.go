package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"ragledger/internal/models"
)

type DocumentChunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:dc"`
	ID            string          `bun:"id,pk"`
	FileID        string          `bun:"file_id,notnull"`
	Filename      string          `bun:"filename,notnull"`
	Page          *int            `bun:"page"`
	FileType      string          `bun:"file_type,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

type chunkHit struct {
	ID       string  `bun:"id"`
	FileID   string  `bun:"file_id"`
	Filename string  `bun:"filename"`
	Page     *int    `bun:"page"`
	FileType string  `bun:"file_type"`
	Content  string  `bun:"content"`
	Score    float64 `bun:"score"`
}

// columns a search filter may constrain
var filterColumns = map[string]string{
	models.MetaFileID:   "file_id",
	models.MetaFilename: "filename",
	models.MetaType:     "file_type",
}

// PgVectorStore keeps chunk vectors in a Postgres table with the pgvector extension.
type PgVectorStore struct {
	db     *bun.DB
	table  string
	logger zerolog.Logger
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn, password string) *sql.DB {
	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if password != "" {
		opts = append(opts, pgdriver.WithPassword(password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...))
}

func NewPgVectorStore(db *bun.DB, table string, logger zerolog.Logger) *PgVectorStore {
	if table == "" {
		table = "document_chunks"
	}
	return &PgVectorStore{db: db, table: table, logger: logger.With().Str("table", table).Logger()}
}

func (s *PgVectorStore) Name() string { return "postgres" }

// EnsureIndex creates the extension and table. Cosine distance is chosen per query with <=>.
func (s *PgVectorStore) EnsureIndex(ctx context.Context, dimension int) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS ? (
	id text PRIMARY KEY,
	file_id text NOT NULL,
	filename text NOT NULL,
	page integer,
	file_type text NOT NULL,
	content text NOT NULL,
	embedding vector(?) NOT NULL
)`, bun.Ident(s.table), dimension)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS ? ON ? (file_id)",
		bun.Ident(s.table+"_file_id_idx"), bun.Ident(s.table)); err != nil {
		return fmt.Errorf("failed to create file_id index: %w", err)
	}

	// vector(n) stores n as the type modifier
	var typmod int
	err = s.db.NewRaw("SELECT atttypmod FROM pg_attribute WHERE attrelid = ?::regclass AND attname = 'embedding'", s.table).
		Scan(ctx, &typmod)
	if err != nil {
		return fmt.Errorf("failed to read embedding dimension: %w", err)
	}
	if typmod != dimension {
		return fmt.Errorf("table %s has dimension %d, embeddings have %d", s.table, typmod, dimension)
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]DocumentChunk, len(records))
	for i, r := range records {
		rows[i] = DocumentChunk{
			ID:        r.ID,
			FileID:    r.Metadata.FileID,
			Filename:  r.Metadata.Filename,
			Page:      r.Metadata.Page.ToPointer(),
			FileType:  string(r.Metadata.FileType),
			Content:   r.Metadata.Content,
			Embedding: pgvector.NewVector(r.Vector),
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		ModelTableExpr("?", bun.Ident(s.table)).
		On("CONFLICT (id) DO UPDATE").
		Set("file_id = EXCLUDED.file_id").
		Set("filename = EXCLUDED.filename").
		Set("page = EXCLUDED.page").
		Set("file_type = EXCLUDED.file_type").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Query(ctx context.Context, vector []float32, topK int, filter models.Filter) ([]models.Match, error) {
	vec := pgvector.NewVector(vector)
	q := s.db.NewSelect().
		TableExpr("? AS dc", bun.Ident(s.table)).
		Column("id", "file_id", "filename", "page", "file_type", "content").
		ColumnExpr("1 - (embedding <=> ?) AS score", vec).
		OrderExpr("embedding <=> ?", vec).
		Limit(topK)
	for key, val := range filter {
		col, ok := filterColumns[key]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported key %q", models.ErrInvalidFilter, key)
		}
		q = q.Where("? = ?", bun.Ident(col), val)
	}

	var hits []chunkHit
	if err := q.Scan(ctx, &hits); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	matches := make([]models.Match, len(hits))
	for i, h := range hits {
		matches[i] = models.Match{
			ID:    h.ID,
			Score: float32(h.Score),
			Metadata: models.Metadata{
				Filename: h.Filename,
				FileID:   h.FileID,
				ChunkID:  h.ID,
				Page:     mo.PointerToOption(h.Page),
				FileType: models.FileType(h.FileType),
				Content:  h.Content,
			},
		}
	}
	return matches, nil
}

func (s *PgVectorStore) DeleteByFile(ctx context.Context, fileID string) error {
	res, err := s.db.NewDelete().
		Model((*DocumentChunk)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		Where("file_id = ?", fileID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", fileID, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug().Str("file_id", fileID).Int64("deleted", n).Msg("Purged chunks")
	}
	return nil
}

func (s *PgVectorStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PgVectorStore) Close() error {
	return s.db.Close()
}

// drop table, used by tests
func (s *PgVectorStore) Drop(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident(s.table))
	return err
}
