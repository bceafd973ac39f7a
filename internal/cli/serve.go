package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ragledger/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("Starting RAGLedger backend...")
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn().Err(err).Msg("Error closing clients")
		}
		logger.Info().Msg("Shutting down RAGLedger backend...")
	}()

	srv := httpapi.NewServer(cfg.Server, httpapi.Services{
		Uploader: app.Uploader,
		Ingester: app.Ingestor,
		Querier:  app.Querier,
		Health:   app.Health,
	}, logger)
	return srv.Run(ctx)
}

// keeps a nil command context usable in tests
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
