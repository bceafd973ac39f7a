package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"ragledger/internal/models"
)

const (
	DefaultOpenAIModel     = "text-embedding-3-large"
	DefaultOpenAIDimension = 3072
	DefaultBatchSize       = 100
	// MaxOpenAIBatch is the provider's limit on inputs per request.
	MaxOpenAIBatch = 2048
)

type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
	batchSize int
}

type openAIOptions struct {
	model     string
	dimension int
	batchSize int
	baseURL   string
}

type OpenAIOption func(*openAIOptions)

func WithModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		if model != "" {
			o.model = model
		}
	}
}

func WithDimension(dimension int) OpenAIOption {
	return func(o *openAIOptions) {
		if dimension > 0 {
			o.dimension = dimension
		}
	}
}

func WithBatchSize(size int) OpenAIOption {
	return func(o *openAIOptions) {
		if size > 0 {
			o.batchSize = min(size, MaxOpenAIBatch)
		}
	}
}

// WithBaseURL points the client at a compatible endpoint or a test server.
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) {
		o.baseURL = url
	}
}

func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is empty", models.ErrEmbedding)
	}
	options := openAIOptions{
		model:     DefaultOpenAIModel,
		dimension: DefaultOpenAIDimension,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(&options)
	}

	// every call is attempted once; failures surface to the caller
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if options.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(options.baseURL))
	}

	return &OpenAIEmbedder{
		client:    openai.NewClient(reqOpts...),
		model:     options.model,
		dimension: options.dimension,
		batchSize: options.batchSize,
	}, nil
}

func (e *OpenAIEmbedder) Name() string   { return "openai" }
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Embed sends one request per batch, sequentially, and keeps input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := checkInputs(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for i, batch := range batches(texts, e.batchSize) {
		vectors, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d: %w", models.ErrEmbedding, i, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai returned status %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Ping checks the key and model by fetching the model description.
func (e *OpenAIEmbedder) Ping(ctx context.Context) error {
	if _, err := e.client.Models.Get(ctx, e.model); err != nil {
		return fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	return nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
