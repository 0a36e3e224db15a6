package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ideaspaper/sheets-reader-mcp/internal/mcpserver"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdin/stdout (default)",
	RunE:  runStdio,
}

func init() {
	rootCmd.AddCommand(stdioCmd)
}

func runStdio(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}

	srv := mcpserver.New(a.cfg.Server.Name, version, a.registry.List(), a.dispatcher, a.logger)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		a.logger.Warn("stdin is a terminal; expecting JSON-RPC messages from an MCP client")
	}
	a.logger.Info("serving MCP on stdio", "tools", len(a.registry.List()))
	if err := srv.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && !isShutdown(err) {
		return err
	}
	a.logger.Info("stdio server stopped")
	return nil
}
