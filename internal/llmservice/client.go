package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"ragledger/internal/config"
	"ragledger/internal/models"
)

// Generator answers a question from retrieved document excerpts.
type Generator struct {
	llm         llms.Model
	name        string
	temperature float64
	maxTokens   int
	logger      zerolog.Logger
}

type Option func(*Generator)

func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

func NewGenerator(llm llms.Model, name string, opts ...Option) *Generator {
	g := &Generator{
		llm:         llm,
		name:        name,
		temperature: 0.7,
		maxTokens:   1000,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromConfig builds the chat model named in the config.
func NewFromConfig(cfg *config.Config, logger zerolog.Logger) (*Generator, error) {
	var (
		llm llms.Model
		err error
	)
	switch cfg.LLM.Provider {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.OpenAI.APIKey, "Bearer ")),
			openai.WithModel(cfg.LLM.Model),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		llm, err = openai.New(opts...)
	case "ollama":
		llm, err = ollama.New(ollama.WithServerURL(cfg.LLM.BaseURL), ollama.WithModel(cfg.LLM.Model))
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", models.ErrConfiguration, cfg.LLM.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize %s llm: %w", models.ErrGeneration, cfg.LLM.Provider, err)
	}

	return NewGenerator(llm, cfg.LLM.Provider,
		WithTemperature(cfg.LLM.Temperature),
		WithMaxTokens(cfg.LLM.MaxTokens),
		WithLogger(logger.With().Str("component", "generator").Str("model", cfg.LLM.Model).Logger()),
	), nil
}

func (g *Generator) Name() string { return g.name }

// Generate must not be called without context; the query flow answers that case itself.
func (g *Generator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	if len(contexts) == 0 {
		return "", fmt.Errorf("%w: no context provided", models.ErrGeneration)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(query, contexts)),
	}

	res, err := g.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		g.logger.Error().Err(err).Msg("Answer generation failed")
		return "", fmt.Errorf("%w: %w", models.ErrGeneration, err)
	}
	if res == nil || len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", models.ErrGeneration)
	}
	g.logger.Debug().Int("contexts", len(contexts)).Msg("Generated answer")
	return res.Choices[0].Content, nil
}

// BuildPrompt numbers each excerpt as [Document i] starting from 1.
func BuildPrompt(query string, contexts []string) string {
	var b strings.Builder
	for i, c := range contexts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Document %d]\n%s", i+1, c)
	}
	return fmt.Sprintf(models.AnswerPromptTemplate, b.String(), query)
}
