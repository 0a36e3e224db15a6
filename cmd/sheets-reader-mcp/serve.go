package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ideaspaper/sheets-reader-mcp/internal/httpapi"
	"github.com/ideaspaper/sheets-reader-mcp/internal/mcpserver"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tools over HTTP",
	Long: `Starts an HTTP server exposing:

  GET  /            liveness text
  GET  /health      {"status":"ok"}
  GET  /tools       tool catalog
  POST /mcp, /api   tool invocation
  /mcp/stream       MCP streamable HTTP transport
  GET  /metrics     Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "Port to listen on (default 3000, env PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}

	mcpSrv := mcpserver.New(a.cfg.Server.Name, version, a.registry.List(), a.dispatcher, a.logger)
	handler := httpapi.NewHandler(a.dispatcher, a.registry, httpapi.Options{
		Metrics: a.recorder.Handler(),
		MCP:     mcpSrv.StreamableHTTPHandler(),
		Logger:  a.logger,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", a.cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("HTTP server stopped gracefully")
	return nil
}
