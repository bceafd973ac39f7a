package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ragledger/internal/models"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Blob        BlobConfig        `yaml:"blob"`
	AWS         AWSConfig         `yaml:"aws"`
	Secrets     SecretsConfig     `yaml:"secrets"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HealthTimeout   time.Duration `yaml:"health_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// OpenAIConfig is shared by the embedding client and the answer generator.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // openai | ollama
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
	BaseURL   string `yaml:"base_url"` // ollama server
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai | ollama
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type ChunkingConfig struct {
	Size     int    `yaml:"size"`
	Overlap  int    `yaml:"overlap"`
	Encoding string `yaml:"encoding"`
}

type VectorStoreConfig struct {
	Provider     string         `yaml:"provider"` // pinecone | chromem | postgres
	SnippetChars int            `yaml:"snippet_chars"`
	Pinecone     PineconeConfig `yaml:"pinecone"`
	Chromem      ChromemConfig  `yaml:"chromem"`
	Postgres     PostgresConfig `yaml:"postgres"`
}

type PineconeConfig struct {
	APIKey      string        `yaml:"api_key"`
	Environment string        `yaml:"environment"`
	Index       string        `yaml:"index"`
	Namespace   string        `yaml:"namespace"`
	Cloud       string        `yaml:"cloud"`
	Region      string        `yaml:"region"`
	ReadyWait   time.Duration `yaml:"ready_wait"`
}

type ChromemConfig struct {
	Path       string `yaml:"path"` // empty keeps the collection in memory
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
	Debug    bool   `yaml:"debug"`
}

type BlobConfig struct {
	Provider  string `yaml:"provider"` // s3 | local
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	LocalPath string `yaml:"local_path"`
	TempDir   string `yaml:"temp_dir"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
}

type SecretsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OpenAISecret   string `yaml:"openai_secret"`
	PineconeSecret string `yaml:"pinecone_secret"`
}

type IngestConfig struct {
	PurgeBeforeUpsert bool `yaml:"purge_before_upsert"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			MaxUploadBytes:  50 << 20,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			HealthTimeout:   5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-large",
			Dimension: 3072,
			BatchSize: 100,
			BaseURL:   "http://localhost:11434",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Chunking: ChunkingConfig{
			Size:     models.DefaultChunkSize,
			Overlap:  models.DefaultChunkOverlap,
			Encoding: "cl100k_base",
		},
		VectorStore: VectorStoreConfig{
			Provider:     "pinecone",
			SnippetChars: models.DefaultSnippetChars,
			Pinecone: PineconeConfig{
				Index:     "ragledger",
				Cloud:     "aws",
				Region:    "us-east-1",
				ReadyWait: 2 * time.Minute,
			},
			Chromem: ChromemConfig{
				Path:       "./data/chromem",
				Collection: "ragledger",
			},
			Postgres: PostgresConfig{Table: "document_chunks"},
		},
		Blob: BlobConfig{
			Provider:  "s3",
			Bucket:    "ragledger-documents",
			LocalPath: "./data/blobs.db",
		},
		AWS: AWSConfig{Region: "us-east-1"},
		Secrets: SecretsConfig{
			Enabled:        true,
			OpenAISecret:   "ragledger/openai",
			PineconeSecret: "ragledger/pinecone",
		},
		Ingest: IngestConfig{PurgeBeforeUpsert: true},
	}
}

// LoadConfig layers defaults, the yaml file, the env file and the process environment.
// Missing files are not an error.
func LoadConfig(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("%w: failed to read config %s: %w", models.ErrConfiguration, path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: failed to parse config %s: %w", models.ErrConfiguration, path, err)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to load env file %s: %w", models.ErrConfiguration, envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("HOST", &c.Server.Host)
	num("PORT", &c.Server.Port)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("OPENAI_MODEL", &c.LLM.Model)
	str("OPENAI_EMBED_MODEL", &c.Embedding.Model)
	str("EMBEDDING_PROVIDER", &c.Embedding.Provider)
	num("EMBEDDING_DIMENSION", &c.Embedding.Dimension)
	num("EMBEDDING_BATCH_SIZE", &c.Embedding.BatchSize)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("OLLAMA_URL", &c.LLM.BaseURL)
	str("OLLAMA_URL", &c.Embedding.BaseURL)

	num("CHUNK_SIZE", &c.Chunking.Size)
	num("CHUNK_OVERLAP", &c.Chunking.Overlap)

	str("VECTOR_STORE", &c.VectorStore.Provider)
	num("SNIPPET_CHARS", &c.VectorStore.SnippetChars)
	str("PINECONE_API_KEY", &c.VectorStore.Pinecone.APIKey)
	str("PINECONE_ENVIRONMENT", &c.VectorStore.Pinecone.Environment)
	str("PINECONE_INDEX", &c.VectorStore.Pinecone.Index)
	str("PINECONE_NAMESPACE", &c.VectorStore.Pinecone.Namespace)
	str("PINECONE_CLOUD", &c.VectorStore.Pinecone.Cloud)
	str("PINECONE_REGION", &c.VectorStore.Pinecone.Region)
	str("CHROMEM_PATH", &c.VectorStore.Chromem.Path)
	str("DATABASE_URL", &c.VectorStore.Postgres.DSN)
	str("DATABASE_PASSWORD", &c.VectorStore.Postgres.Password)

	str("BLOB_STORE", &c.Blob.Provider)
	str("S3_BUCKET", &c.Blob.Bucket)
	str("S3_ENDPOINT", &c.Blob.Endpoint)
	str("BLOB_LOCAL_PATH", &c.Blob.LocalPath)
	str("AWS_REGION", &c.AWS.Region)

	flag("SECRETS_ENABLED", &c.Secrets.Enabled)
	flag("PURGE_BEFORE_UPSERT", &c.Ingest.PurgeBeforeUpsert)

	if len(errs) > 0 {
		return fmt.Errorf("%w: invalid environment: %w", models.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Validate checks that everything the selected providers need is present.
func (c *Config) Validate() error {
	var errs []error
	need := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.Embedding.Provider {
	case "openai":
		need(c.OpenAI.APIKey != "", "OPENAI_API_KEY is required for openai embeddings")
	case "ollama":
		need(c.Embedding.BaseURL != "", "embedding.base_url is required for ollama embeddings")
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	need(c.Embedding.Model != "", "embedding model is required")
	need(c.Embedding.Dimension > 0, "embedding dimension must be positive")
	need(c.Embedding.BatchSize > 0, "embedding batch size must be positive")

	switch c.LLM.Provider {
	case "openai":
		need(c.OpenAI.APIKey != "", "OPENAI_API_KEY is required for openai answers")
	case "ollama":
		need(c.LLM.BaseURL != "", "llm.base_url is required for ollama answers")
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	need(c.LLM.Model != "", "llm model is required")

	need(c.Chunking.Size > 0, "chunk size must be positive")
	need(c.Chunking.Overlap >= 0 && c.Chunking.Overlap < c.Chunking.Size, "chunk overlap must be smaller than chunk size")

	switch c.VectorStore.Provider {
	case "pinecone":
		need(c.VectorStore.Pinecone.APIKey != "", "PINECONE_API_KEY is required for the pinecone vector store")
		need(c.VectorStore.Pinecone.Index != "", "pinecone index name is required")
	case "chromem":
		need(c.VectorStore.Chromem.Collection != "", "chromem collection is required")
	case "postgres":
		need(c.VectorStore.Postgres.DSN != "", "DATABASE_URL is required for the postgres vector store")
		need(c.VectorStore.Postgres.Table != "", "postgres table is required")
	default:
		errs = append(errs, fmt.Errorf("unknown vector store %q", c.VectorStore.Provider))
	}
	need(c.VectorStore.SnippetChars >= 0, "snippet_chars must not be negative")

	switch c.Blob.Provider {
	case "s3":
		need(c.Blob.Bucket != "", "S3_BUCKET is required for the s3 blob store")
	case "local":
		need(c.Blob.LocalPath != "", "blob.local_path is required for the local blob store")
	default:
		errs = append(errs, fmt.Errorf("unknown blob store %q", c.Blob.Provider))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Redacted returns a copy that is safe to log.
func (c *Config) Redacted() Config {
	out := *c
	out.OpenAI.APIKey = redact(c.OpenAI.APIKey)
	out.VectorStore.Pinecone.APIKey = redact(c.VectorStore.Pinecone.APIKey)
	out.VectorStore.Postgres.Password = redact(c.VectorStore.Postgres.Password)
	out.VectorStore.Postgres.DSN = redact(c.VectorStore.Postgres.DSN)
	return out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
