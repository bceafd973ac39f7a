package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ragledger/internal/config"
	"ragledger/internal/helper"
)

var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragledger",
	Short: "RAGLedger - question answering over banking documents",
	Long: `RAGLedger ingests PDF statements and CSV transaction exports into a vector
index and answers questions about them with cited sources.

Example usage:
  ragledger serve                          # Start the HTTP API
  ragledger ingest ./statements/*.pdf      # Upload and index local files
  ragledger query "What was my balance?"   # Ask a question`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(cfgFile, envFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		logger = helper.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./configs/config.yaml", "yaml config file, ignored when missing")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file, ignored when missing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
}
