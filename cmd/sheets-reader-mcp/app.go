package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ideaspaper/sheets-reader-mcp/internal/auth"
	"github.com/ideaspaper/sheets-reader-mcp/internal/config"
	"github.com/ideaspaper/sheets-reader-mcp/internal/dispatch"
	"github.com/ideaspaper/sheets-reader-mcp/internal/logging"
	"github.com/ideaspaper/sheets-reader-mcp/internal/metrics"
	"github.com/ideaspaper/sheets-reader-mcp/internal/spreadsheet"
	"github.com/ideaspaper/sheets-reader-mcp/internal/tools"
)

// app holds the wired components shared by the transports.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *tools.Registry
	dispatcher *dispatch.Dispatcher
	recorder   *metrics.Recorder
}

// loadConfig reads the config file and environment, then applies any flags
// set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetString("port")
	}
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, &config.ConfigurationError{Reason: "invalid log level", Err: err}
	}
	return logging.New(level, cfg.Log.Format), nil
}

// newApp validates the configuration and wires the Sheets client into the
// registry and dispatcher. Missing or unusable credentials are fatal here,
// before any transport starts.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	sheetsService, err := auth.NewSheetsService(ctx, cfg.Credentials, logger)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterSheetTools(registry, spreadsheet.NewService(sheetsService)); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	recorder := metrics.NewRecorder()
	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		dispatcher: dispatch.New(registry,
			dispatch.WithLogger(logger),
			dispatch.WithObserver(recorder),
		),
		recorder: recorder,
	}, nil
}
