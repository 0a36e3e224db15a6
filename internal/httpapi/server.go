// Package httpapi serves tool invocations as a plain JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ideaspaper/sheets-reader-mcp/internal/dispatch"
	"github.com/ideaspaper/sheets-reader-mcp/internal/logging"
	"github.com/ideaspaper/sheets-reader-mcp/internal/tools"
)

// MaxBodyBytes bounds the size of a tool call request body.
const MaxBodyBytes = 1 << 20

// Invoker runs a normalized tool invocation.
type Invoker interface {
	Invoke(ctx context.Context, inv dispatch.Invocation) *dispatch.Result
}

// Lister enumerates the tool catalog.
type Lister interface {
	List() []tools.Definition
}

// Options configures the handler.
type Options struct {
	// Banner is the liveness text served on GET /.
	Banner string
	// Metrics, when set, is mounted on GET /metrics.
	Metrics http.Handler
	// MCP, when set, is mounted on /mcp/stream.
	MCP    http.Handler
	Logger *slog.Logger
}

// Server handles the HTTP surface.
type Server struct {
	invoker Invoker
	catalog Lister
	opts    Options
}

// NewHandler builds the router.
func NewHandler(invoker Invoker, catalog Lister, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Banner == "" {
		opts.Banner = "Google Sheets MCP server is running"
	}
	s := &Server{invoker: invoker, catalog: catalog, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/tools", s.handleTools)
	r.Post("/mcp", s.handleCall)
	r.Post("/api", s.handleCall)
	if opts.MCP != nil {
		r.Handle("/mcp/stream", opts.MCP)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	return r
}

type errorBody struct {
	Error string `json:"error"`
}

type toolDescriptor struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	InputSchema mcp.ToolInputSchema `json:"inputSchema"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.opts.Banner))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	defs := s.catalog.List()
	out := make([]toolDescriptor, 0, len(defs))
	for _, def := range defs {
		out = append(out, toolDescriptor{
			Name:        def.Tool.Name,
			Description: def.Tool.Description,
			InputSchema: def.Tool.InputSchema,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var body callRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}

	inv, err := body.normalize()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	res := s.invoker.Invoke(r.Context(), inv)
	writeJSON(w, statusFor(res), res)
}

// statusFor maps a result to the HTTP status of the response.
func statusFor(res *dispatch.Result) int {
	if !res.IsError {
		return http.StatusOK
	}

	var (
		unknown  *tools.UnknownToolError
		invalid  *dispatch.ValidationError
		upstream *dispatch.UpstreamError
	)
	switch err := res.Err(); {
	case errors.As(err, &unknown):
		return http.StatusNotFound
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Mcp-Session-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isJSONRPCCall reports whether method names an MCP tools/call request.
func isJSONRPCCall(method string) bool {
	return strings.EqualFold(method, string(mcp.MethodToolsCall))
}
