package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"

	"ragledger/internal/blob"
	"ragledger/internal/chromemdb"
	"ragledger/internal/chunker"
	"ragledger/internal/config"
	"ragledger/internal/db"
	"ragledger/internal/embedding"
	"ragledger/internal/health"
	"ragledger/internal/helper"
	"ragledger/internal/llmservice"
	"ragledger/internal/models"
	"ragledger/internal/parser"
	"ragledger/internal/rag"
	"ragledger/internal/secrets"
	"ragledger/internal/vectorstore"
)

// App holds every client built from the config. They are created once and
// shared by all requests.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Blobs    blob.Store
	Store    *vectorstore.Store
	Uploader *rag.Uploader
	Ingestor *rag.Ingestor
	Querier  *rag.Querier
	Health   *health.Checker

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	var awsCfg aws.Config
	if cfg.Blob.Provider == "s3" || cfg.Secrets.Enabled {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load aws config: %w", models.ErrConfiguration, err)
		}
	}

	var provider secrets.Provider
	if cfg.Secrets.Enabled {
		provider = secrets.NewSecretsManager(awsCfg)
	}
	secrets.Resolve(ctx, cfg, provider, logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Debug().Interface("config", cfg.Redacted()).Msg("Loaded config")

	if err := helper.CreateFolder(cfg.Blob.TempDir); err != nil {
		return nil, err
	}
	blobs, err := app.newBlobStore(cfg, awsCfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Blobs = blobs

	tok, err := chunker.NewTiktoken(cfg.Chunking.Encoding)
	if err != nil {
		app.Close()
		return nil, err
	}
	chk, err := chunker.New(tok, cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		app.Close()
		return nil, err
	}

	embedder, err := embedding.NewEmbedder(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	backend, err := newBackend(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = vectorstore.New(backend, embedder.Dimension(),
		vectorstore.WithBatchSize(models.UpsertBatchSize),
		vectorstore.WithSnippetChars(cfg.VectorStore.SnippetChars),
		vectorstore.WithLogger(logger.With().Str("component", "vectorstore").Logger()),
	)
	app.closers = append(app.closers, app.Store.Close)
	if err := app.Store.Init(ctx); err != nil {
		app.Close()
		return nil, err
	}

	generator, err := llmservice.NewFromConfig(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Uploader = rag.NewUploader(blobs, logger.With().Str("component", "upload").Logger())
	app.Ingestor = rag.NewIngestor(blobs, parser.New(logger), chk, embedder, app.Store,
		rag.WithPurge(cfg.Ingest.PurgeBeforeUpsert),
		rag.WithTempDir(cfg.Blob.TempDir),
		rag.WithIngestLogger(logger.With().Str("component", "ingest").Logger()),
	)
	app.Querier = rag.NewQuerier(embedder, app.Store, generator, logger.With().Str("component", "query").Logger())

	app.Health = health.NewChecker(cfg.Server.HealthTimeout, logger).
		Add(embedder.Name(), embedder).
		Add(app.Store.Name(), app.Store).
		Add(blobs.Name(), blobs)

	return app, nil
}

func (a *App) newBlobStore(cfg *config.Config, awsCfg aws.Config) (blob.Store, error) {
	switch cfg.Blob.Provider {
	case "s3":
		return blob.NewS3Store(awsCfg, cfg.Blob.Bucket, cfg.Blob.Endpoint), nil
	case "local":
		if err := helper.CreateFolder(filepath.Dir(cfg.Blob.LocalPath)); err != nil {
			return nil, err
		}
		s, err := blob.NewBoltStore(cfg.Blob.LocalPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown blob store %q", models.ErrConfiguration, cfg.Blob.Provider)
	}
}

func newBackend(cfg *config.Config, logger zerolog.Logger) (vectorstore.Backend, error) {
	vs := cfg.VectorStore
	switch vs.Provider {
	case "pinecone":
		return vectorstore.NewPinecone(vectorstore.PineconeConfig{
			APIKey:    vs.Pinecone.APIKey,
			Index:     vs.Pinecone.Index,
			Namespace: vs.Pinecone.Namespace,
			Cloud:     vs.Pinecone.Cloud,
			Region:    vs.Pinecone.Region,
			ReadyWait: vs.Pinecone.ReadyWait,
		}, logger)
	case "chromem":
		if vs.Chromem.Path != "" {
			if err := helper.CreateFolder(vs.Chromem.Path); err != nil {
				return nil, err
			}
		}
		return chromemdb.NewVectorDBManager(vs.Chromem.Path, vs.Chromem.Collection, vs.Chromem.Compress, logger)
	case "postgres":
		bunDB := db.NewDB(db.ConnectDB(vs.Postgres.DSN, vs.Postgres.Password), vs.Postgres.Debug)
		return db.NewPgVectorStore(bunDB, vs.Postgres.Table, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", models.ErrConfiguration, vs.Provider)
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
