package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hrag/internal/config"
	"hrag/internal/logger"
)

var (
	// configPath is the --config flag value
	configPath string
	// logLevel overrides log.level when set
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "hrag",
	Short: "hrag - hierarchical retrieval over a single document",
	Long: `hrag splits a document into raw chunks, summarizes them into four coarser
levels and answers questions by searching from broad summaries down to the
passages they cover.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to YAML config file (default: ./config.yaml or ~/.config/hrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
}

// loadConfig resolves .env, the config file and CLI overrides.
// Precedence: --config > ./config.yaml > ~/.config/hrag/config.yaml
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	var cfg *config.AppConfig
	var err error
	if configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup loads the config and builds the logger. The returned function closes
// the log output.
func setup() (*config.AppConfig, *slog.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closeLog, nil
}

func newLogger(cfg *config.AppConfig) (*slog.Logger, func(), error) {
	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}
	return log, func() { _ = closeLog() }, nil
}
