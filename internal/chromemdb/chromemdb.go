package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"ragledger/internal/models"
)

// VectorDBManager keeps chunk vectors in an embedded chromem-go collection.
// Used for local runs and tests where no managed index is available.
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	dbPath         string
	logger         zerolog.Logger
}

// vectors are always computed by the embedding client before they get here
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromemdb: documents must carry precomputed embeddings")
}

// NewVectorDBManager opens a persistent database at dbPath, or an in-memory one when dbPath is empty.
func NewVectorDBManager(dbPath, collectionName string, compress bool, logger zerolog.Logger) (*VectorDBManager, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:             db,
		collectionName: collectionName,
		dbPath:         dbPath,
		logger:         logger.With().Str("collection", collectionName).Logger(),
	}, nil
}

func (m *VectorDBManager) Name() string { return "chromem" }

// create or read collection; chromem compares normalized vectors, i.e. cosine
func (m *VectorDBManager) EnsureIndex(_ context.Context, dimension int) error {
	c, err := m.db.GetOrCreateCollection(m.collectionName, map[string]string{
		"dimension": fmt.Sprint(dimension),
		"metric":    "cosine",
	}, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	m.logger.Debug().Int("documents", c.Count()).Str("path", m.dbPath).Msg("Opened collection")
	return nil
}

// add multiple documents; an existing id is overwritten
func (m *VectorDBManager) Upsert(ctx context.Context, records []models.Record) error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Metadata.Content,
			Metadata:  r.Metadata.StringMap(),
			Embedding: r.Vector,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Query(ctx context.Context, vector []float32, topK int, filter models.Filter) ([]models.Match, error) {
	if m.collection == nil {
		return nil, errors.New("collection is required")
	}
	// chromem refuses nResults larger than the collection
	n := min(topK, m.collection.Count())
	if n == 0 {
		return []models.Match{}, nil
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}
	results, err := m.collection.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, len(results))
	for i, r := range results {
		matches[i] = models.Match{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: models.MetadataFromStrings(r.Metadata),
		}
	}
	return matches, nil
}

func (m *VectorDBManager) DeleteByFile(ctx context.Context, fileID string) error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	if err := m.collection.Delete(ctx, map[string]string{models.MetaFileID: fileID}, nil); err != nil {
		return fmt.Errorf("failed to delete documents of %s: %w", fileID, err)
	}
	return nil
}

func (m *VectorDBManager) Ping(context.Context) error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	return nil
}

// Close is a no-op; a persistent database writes each document as it is added.
func (m *VectorDBManager) Close() error {
	return nil
}
