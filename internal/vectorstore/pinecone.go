package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"

	"ragledger/internal/models"
)

type PineconeConfig struct {
	APIKey    string
	Index     string
	Namespace string
	Cloud     string
	Region    string
	ReadyWait time.Duration
}

// Pinecone stores records in a serverless Pinecone index.
type Pinecone struct {
	client *pinecone.Client
	cfg    PineconeConfig
	conn   *pinecone.IndexConnection
	logger zerolog.Logger
}

var errNotInitialized = errors.New("pinecone index connection not initialized")

func NewPinecone(cfg PineconeConfig, logger zerolog.Logger) (*Pinecone, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: pinecone api key is empty", models.ErrConfiguration)
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}
	if cfg.ReadyWait <= 0 {
		cfg.ReadyWait = 2 * time.Minute
	}
	return &Pinecone{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("index", cfg.Index).Logger(),
	}, nil
}

func (p *Pinecone) Name() string { return "pinecone" }

func (p *Pinecone) EnsureIndex(ctx context.Context, dimension int) error {
	idx, err := p.findIndex(ctx)
	if err != nil {
		return err
	}
	if idx == nil {
		p.logger.Info().Int("dimension", dimension).Msg("Creating pinecone index")
		_, err := p.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
			Name:      p.cfg.Index,
			Dimension: int32(dimension),
			Metric:    pinecone.Cosine,
			Cloud:     pinecone.Cloud(p.cfg.Cloud),
			Region:    p.cfg.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", p.cfg.Index, err)
		}
		if idx, err = p.waitReady(ctx); err != nil {
			return err
		}
	}

	if int(idx.Dimension) != dimension {
		return fmt.Errorf("index %s has dimension %d, embeddings have %d", p.cfg.Index, idx.Dimension, dimension)
	}
	if idx.Metric != pinecone.Cosine {
		return fmt.Errorf("index %s uses metric %s, expected cosine", p.cfg.Index, idx.Metric)
	}

	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: idx.Host, Namespace: p.cfg.Namespace})
	if err != nil {
		return fmt.Errorf("failed to connect to index %s: %w", p.cfg.Index, err)
	}
	p.conn = conn
	return nil
}

func (p *Pinecone) findIndex(ctx context.Context) (*pinecone.Index, error) {
	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == p.cfg.Index {
			return idx, nil
		}
	}
	return nil, nil
}

func (p *Pinecone) waitReady(ctx context.Context) (*pinecone.Index, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ReadyWait)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		idx, err := p.client.DescribeIndex(ctx, p.cfg.Index)
		if err == nil && idx.Status != nil && idx.Status.Ready {
			return idx, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("index %s not ready: %w", p.cfg.Index, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *Pinecone) Upsert(ctx context.Context, records []models.Record) error {
	if p.conn == nil {
		return errNotInitialized
	}
	vectors := make([]*pinecone.Vector, len(records))
	for i, r := range records {
		md, err := metadataToStruct(r.Metadata)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		vectors[i] = &pinecone.Vector{Id: r.ID, Values: r.Vector, Metadata: md}
	}
	if _, err := p.conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

func (p *Pinecone) Query(ctx context.Context, vector []float32, topK int, filter models.Filter) ([]models.Match, error) {
	if p.conn == nil {
		return nil, errNotInitialized
	}
	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	}
	if len(filter) > 0 {
		f, err := filterToStruct(filter)
		if err != nil {
			return nil, err
		}
		req.MetadataFilter = f
	}

	resp, err := p.conn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	matches := make([]models.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, models.Match{
			ID:       m.Vector.Id,
			Score:    m.Score,
			Metadata: metadataFromStruct(m.Vector.Metadata),
		})
	}
	return matches, nil
}

// DeleteByFile lists ids by the "{file_id}_" prefix and deletes them page by page.
func (p *Pinecone) DeleteByFile(ctx context.Context, fileID string) error {
	if p.conn == nil {
		return errNotInitialized
	}
	prefix := fileID + "_"
	var token *string
	deleted := 0
	for {
		resp, err := p.conn.ListVectors(ctx, &pinecone.ListVectorsRequest{Prefix: &prefix, PaginationToken: token})
		if err != nil {
			return fmt.Errorf("failed to list vectors: %w", err)
		}
		ids := make([]string, 0, len(resp.VectorIds))
		for _, id := range resp.VectorIds {
			if id != nil {
				ids = append(ids, *id)
			}
		}
		if len(ids) > 0 {
			if err := p.conn.DeleteVectorsById(ctx, ids); err != nil {
				return fmt.Errorf("failed to delete vectors: %w", err)
			}
			deleted += len(ids)
		}
		if resp.NextPaginationToken == nil || *resp.NextPaginationToken == "" {
			break
		}
		token = resp.NextPaginationToken
	}
	p.logger.Debug().Str("file_id", fileID).Int("deleted", deleted).Msg("Purged vectors")
	return nil
}

func (p *Pinecone) Ping(ctx context.Context) error {
	if _, err := p.client.DescribeIndex(ctx, p.cfg.Index); err != nil {
		return fmt.Errorf("%w: %w", models.ErrIndex, err)
	}
	return nil
}

func (p *Pinecone) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// page is only written when present; pinecone rejects null metadata values
func metadataToStruct(md models.Metadata) (*structpb.Struct, error) {
	fields := map[string]any{
		models.MetaFilename: md.Filename,
		models.MetaFileID:   md.FileID,
		models.MetaChunkID:  md.ChunkID,
		models.MetaType:     string(md.FileType),
		models.MetaContent:  md.Content,
	}
	if page, ok := md.Page.Get(); ok {
		fields[models.MetaPage] = page
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return s, nil
}

func metadataFromStruct(s *structpb.Struct) models.Metadata {
	if s == nil {
		return models.Metadata{}
	}
	in := make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		switch kind := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			in[k] = kind.StringValue
		case *structpb.Value_NumberValue:
			in[k] = fmt.Sprintf("%d", int64(kind.NumberValue))
		}
	}
	return models.MetadataFromStrings(in)
}

func filterToStruct(filter models.Filter) (*structpb.Struct, error) {
	fields := make(map[string]any, len(filter))
	for k, v := range filter {
		fields[k] = map[string]any{"$eq": v}
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	return s, nil
}

var _ Backend = (*Pinecone)(nil)
