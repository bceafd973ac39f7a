package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/rs/zerolog"

	"ragledger/internal/config"
	"ragledger/internal/models"
)

const (
	SourceSecretsManager = "secrets-manager"
	SourceEnvironment    = "environment"
)

// Provider fetches a JSON secret as a flat string map.
type Provider interface {
	Fetch(ctx context.Context, name string) (map[string]string, error)
}

type SecretsManager struct {
	client *secretsmanager.Client
}

func NewSecretsManager(cfg aws.Config) *SecretsManager {
	return &SecretsManager{client: secretsmanager.NewFromConfig(cfg)}
}

func (s *SecretsManager) Fetch(ctx context.Context, name string) (map[string]string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		var nf *smtypes.ResourceNotFoundException
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: secret %s", models.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", name)
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		return nil, fmt.Errorf("secret %s is not a flat json object: %w", name, err)
	}
	return values, nil
}

// Resolve overlays secret values on cfg. Any failure keeps the environment
// values; it never returns an error so a secrets outage cannot block startup.
// The returned map records the source used for each secret.
func Resolve(ctx context.Context, cfg *config.Config, p Provider, logger zerolog.Logger) map[string]string {
	sources := map[string]string{
		cfg.Secrets.OpenAISecret:   SourceEnvironment,
		cfg.Secrets.PineconeSecret: SourceEnvironment,
	}
	if !cfg.Secrets.Enabled || p == nil {
		logger.Info().Msg("Secrets manager disabled, using environment configuration")
		return sources
	}

	apply := func(name string, set func(map[string]string)) {
		values, err := p.Fetch(ctx, name)
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Str("source", SourceEnvironment).Msg("Falling back to environment configuration")
			return
		}
		set(values)
		sources[name] = SourceSecretsManager
		logger.Info().Str("secret", name).Str("source", SourceSecretsManager).Msg("Loaded configuration from secrets manager")
	}

	apply(cfg.Secrets.OpenAISecret, func(v map[string]string) {
		overlay(&cfg.OpenAI.APIKey, v["api_key"])
		overlay(&cfg.LLM.Model, v["model"])
		overlay(&cfg.Embedding.Model, v["embed_model"])
	})
	apply(cfg.Secrets.PineconeSecret, func(v map[string]string) {
		overlay(&cfg.VectorStore.Pinecone.APIKey, v["api_key"])
		overlay(&cfg.VectorStore.Pinecone.Environment, v["environment"])
		overlay(&cfg.VectorStore.Pinecone.Index, v["index"])
	})
	return sources
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
