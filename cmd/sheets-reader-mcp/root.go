package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sheets-reader-mcp",
	Short: "Read-only Google Sheets tools for MCP clients",
	Long: `sheets-reader-mcp exposes read_sheet, get_sheet_info and read_multiple_ranges
to MCP clients. Without a subcommand it speaks JSON-RPC on stdin/stdout.

Credentials are read from GOOGLE_CLIENT_EMAIL and GOOGLE_PRIVATE_KEY,
CREDENTIALS_CONFIG (base64 encoded key file) or SERVICE_ACCOUNT_PATH.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStdio,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
