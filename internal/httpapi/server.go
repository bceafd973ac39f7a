package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"ragledger/internal/config"
	"ragledger/internal/models"
	"ragledger/internal/rag"
)

type Uploader interface {
	Upload(ctx context.Context, filename string, body []byte) (*rag.UploadResult, error)
}

type Ingester interface {
	Ingest(ctx context.Context, fileID string) (int, error)
}

type Querier interface {
	Query(ctx context.Context, query string, topK int, filter models.Filter) (*models.Answer, error)
}

type HealthChecker interface {
	Check(ctx context.Context) map[string]string
}

// Services are the operations exposed over HTTP.
type Services struct {
	Uploader Uploader
	Ingester Ingester
	Querier  Querier
	Health   HealthChecker
}

type Server struct {
	cfg    config.ServerConfig
	svc    Services
	logger zerolog.Logger
}

func NewServer(cfg config.ServerConfig, svc Services, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, svc: svc, logger: logger}
}

// Handler builds the router with logging, recovery and CORS.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Post("/ingest", s.handleIngest)
	r.Post("/query", s.handleQuery)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
