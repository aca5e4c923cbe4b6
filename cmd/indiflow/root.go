package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"indiflow/internal/config"
	"indiflow/internal/dom"
	"indiflow/internal/engine"
	"indiflow/pkg/database"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "indiflow",
	Short: "Record, identify and replay user flows on web pages",
	Long: `IndiFlow records the interactions of a user on a web page together with the
API calls they trigger, stores them as flows, and replays them later against
the live page to verify that it still behaves the same way.

Configuration is read from the environment (SERVER_*, DB_*, CHROME_*,
PLAYBACK_*, RECORDER_*, JWT_*, LOG_LEVEL, LOG_FORMAT).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		l, err := newLogger(c.Log)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, identifyCmd, flowsCmd, replayCmd, recordCmd, tokenCmd)
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if c.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	if c.Level != "" {
		lvl, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}

// openEngine opens the configured flow store and builds an engine around
// page. The returned func closes both.
func openEngine(ctx context.Context, page dom.Page, source dom.EventSource) (*engine.Engine, func(), error) {
	store, err := database.Open(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	eng := engine.New(ctx, page, source, store, cfg, logger)
	return eng, func() {
		eng.Close()
		if err := store.Close(); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
	}, nil
}
