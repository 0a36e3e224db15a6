// Package mcpserver exposes the tool registry over the Model Context
// Protocol, on stdio or streamable HTTP.
package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ideaspaper/sheets-reader-mcp/internal/dispatch"
	"github.com/ideaspaper/sheets-reader-mcp/internal/logging"
	"github.com/ideaspaper/sheets-reader-mcp/internal/tools"
)

// SpreadsheetInfoTemplate is the resource template serving spreadsheet
// metadata.
const SpreadsheetInfoTemplate = "spreadsheet://{spreadsheet_id}/info"

const maxMessageBytes = 1 << 20

// Invoker runs a normalized tool invocation.
type Invoker interface {
	Invoke(ctx context.Context, inv dispatch.Invocation) *dispatch.Result
}

// Server adapts a Dispatcher to an MCP server.
type Server struct {
	mcpServer *server.MCPServer
	invoker   Invoker
	logger    *slog.Logger
	known     map[string]bool
}

// New registers every definition with an MCP server named name. Calls are
// routed through invoker.
func New(name, version string, defs []tools.Definition, invoker Invoker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		invoker: invoker,
		logger:  logger,
		known:   make(map[string]bool, len(defs)),
		mcpServer: server.NewMCPServer(
			name,
			version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
	}
	s.registerTools(defs)
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// HandleMessage processes one JSON-RPC message. tools/call requests for
// names that were never registered get an error result from the invoker
// instead of a protocol error.
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) mcp.JSONRPCMessage {
	if resp, ok := s.intercept(ctx, raw); ok {
		return resp
	}
	return s.mcpServer.HandleMessage(ctx, raw)
}

// ServeStdio serves JSON-RPC on in/out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	w := &lockedWriter{w: out}
	pr, pw := io.Pipe()
	go s.filterStdio(ctx, in, pw, w)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, pr, w)
}

// StreamableHTTPHandler serves the protocol over streamable HTTP.
func (s *Server) StreamableHTTPHandler() http.Handler {
	next := server.NewStreamableHTTPServer(s.mcpServer)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
		if err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if resp, ok := s.intercept(r.Context(), body); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools(defs []tools.Definition) {
	for _, def := range defs {
		s.known[def.Name()] = true
		s.mcpServer.AddTool(def.Tool, s.handlerFor(def.Name()))
	}
}

func (s *Server) registerResources() {
	template := mcp.NewResourceTemplate(
		SpreadsheetInfoTemplate,
		"Spreadsheet Info",
		mcp.WithTemplateDescription("Title, locale, time zone and sheets of a Google Spreadsheet"),
		mcp.WithTemplateMIMEType("application/json"),
	)
	s.mcpServer.AddResourceTemplate(template, s.handleSpreadsheetInfo)
}

func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := getArgsFromRequest(request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
		}
		res := s.invoker.Invoke(ctx, dispatch.Invocation{Name: name, Arguments: args})
		return toCallToolResult(res), nil
	}
}

// handleSpreadsheetInfo serves spreadsheet://<id>/info through get_sheet_info.
func (s *Server) handleSpreadsheetInfo(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	spreadsheetID, err := spreadsheetIDFromURI(uri)
	if err != nil {
		return nil, err
	}

	res := s.invoker.Invoke(ctx, dispatch.Invocation{
		Name:      tools.GetSheetInfo,
		Arguments: map[string]any{"spreadsheetId": spreadsheetID},
	})
	if res.IsError {
		return nil, errors.New(res.Text())
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     res.Text(),
		},
	}, nil
}

func spreadsheetIDFromURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, "spreadsheet://")
	if !ok {
		return "", fmt.Errorf("invalid URI format: %s", uri)
	}
	id, ok := strings.CutSuffix(rest, "/info")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("invalid URI format: missing spreadsheet_id in %s", uri)
	}
	return id, nil
}

// callRequest is the subset of a tools/call request needed to route it.
type callRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params struct {
		Name      string `json:"name"`
		Arguments any    `json:"arguments"`
	} `json:"params"`
}

type callResponse struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      json.RawMessage     `json:"id"`
	Result  *mcp.CallToolResult `json:"result"`
}

// intercept answers tools/call requests for unregistered names, which the
// protocol layer would otherwise reject before any handler runs.
func (s *Server) intercept(ctx context.Context, raw []byte) (mcp.JSONRPCMessage, bool) {
	var req callRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, false
	}
	if req.Method != string(mcp.MethodToolsCall) || len(req.ID) == 0 || string(req.ID) == "null" {
		return nil, false
	}
	if s.known[req.Params.Name] {
		return nil, false
	}

	args, _ := req.Params.Arguments.(map[string]any)
	res := s.invoker.Invoke(ctx, dispatch.Invocation{Name: req.Params.Name, Arguments: args})
	return callResponse{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      req.ID,
		Result:  toCallToolResult(res),
	}, true
}

// filterStdio forwards every line of in to the protocol server except the
// tools/call requests answered by intercept, which are written to out.
func (s *Server) filterStdio(ctx context.Context, in io.Reader, forward *io.PipeWriter, out io.Writer) {
	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			if resp, ok := s.intercept(ctx, line); ok {
				if werr := writeMessage(out, resp); werr != nil {
					s.logger.Error("failed to write response", "error", werr)
				}
			} else {
				if line[len(line)-1] != '\n' {
					line = append(line, '\n')
				}
				if _, werr := forward.Write(line); werr != nil {
					return
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = forward.Close()
			} else {
				_ = forward.CloseWithError(err)
			}
			return
		}
	}
}

func writeMessage(w io.Writer, msg mcp.JSONRPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// lockedWriter serializes writes so whole messages never interleave.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func getArgsFromRequest(request mcp.CallToolRequest) (map[string]any, error) {
	if request.Params.Arguments == nil {
		return map[string]any{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be an object")
	}
	return args, nil
}

func toCallToolResult(res *dispatch.Result) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(res.Content))
	for _, c := range res.Content {
		content = append(content, mcp.NewTextContent(c.Text))
	}
	return &mcp.CallToolResult{
		Content: content,
		IsError: res.IsError,
	}
}
