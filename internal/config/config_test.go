package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragledger/internal/models"
)

func validConfig() *Config {
	cfg := Default()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.VectorStore.Pinecone.APIKey = "pc-test"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 3072, cfg.Embedding.Dimension)
	assert.Equal(t, "ragledger", cfg.VectorStore.Pinecone.Index)
	assert.Equal(t, "ragledger-documents", cfg.Blob.Bucket)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.True(t, cfg.Ingest.PurgeBeforeUpsert)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
server:
  port: 9000
  read_timeout: 10s
vector_store:
  provider: chromem
  chromem:
    path: ""
llm:
  model: gpt-4o
`), 0o600))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PINECONE_INDEX=from-dotenv\n"), 0o600))
	t.Setenv("PINECONE_INDEX", "")
	require.NoError(t, os.Unsetenv("PINECONE_INDEX"))

	for _, key := range []string{"PORT", "VECTOR_STORE", "CHROMEM_PATH"} {
		t.Setenv(key, "")
	}
	t.Setenv("OPENAI_MODEL", "gpt-4.1-mini")
	t.Setenv("S3_BUCKET", "bank-docs")
	t.Setenv("CHUNK_OVERLAP", "20")

	cfg, err := LoadConfig(yamlPath, envPath)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Empty(t, cfg.VectorStore.Chromem.Path)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model, "env overrides yaml")
	assert.Equal(t, "bank-docs", cfg.Blob.Bucket)
	assert.Equal(t, 20, cfg.Chunking.Overlap)
	assert.Equal(t, "from-dotenv", cfg.VectorStore.Pinecone.Index)
}

func TestLoadConfigMissingFiles(t *testing.T) {
	t.Setenv("BLOB_STORE", "")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("S3_ENDPOINT", "")
	t.Setenv("BLOB_LOCAL_PATH", "")

	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "none.yaml"), filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, Default().Blob, cfg.Blob)
}

func TestLoadConfigBadInput(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server: [unterminated"), 0o600))

	_, err := LoadConfig(yamlPath, "")
	assert.ErrorIs(t, err, models.ErrConfiguration)

	t.Setenv("PORT", "eighty")
	_, err = LoadConfig("", "")
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing openai key", mutate: func(c *Config) { c.OpenAI.APIKey = "" }, wantErr: true},
		{name: "missing pinecone key", mutate: func(c *Config) { c.VectorStore.Pinecone.APIKey = "" }, wantErr: true},
		{
			name: "chromem needs no pinecone key",
			mutate: func(c *Config) {
				c.VectorStore.Provider = "chromem"
				c.VectorStore.Pinecone.APIKey = ""
			},
		},
		{
			name: "ollama needs no openai key",
			mutate: func(c *Config) {
				c.OpenAI.APIKey = ""
				c.Embedding.Provider = "ollama"
				c.LLM.Provider = "ollama"
			},
		},
		{name: "postgres without dsn", mutate: func(c *Config) { c.VectorStore.Provider = "postgres" }, wantErr: true},
		{name: "overlap too large", mutate: func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }, wantErr: true},
		{name: "unknown blob store", mutate: func(c *Config) { c.Blob.Provider = "ftp" }, wantErr: true},
		{name: "zero dimension", mutate: func(c *Config) { c.Embedding.Dimension = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	out := cfg.Redacted()
	assert.Equal(t, "****", out.OpenAI.APIKey)
	assert.Equal(t, "****", out.VectorStore.Pinecone.APIKey)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}
