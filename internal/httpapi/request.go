package httpapi

import (
	"errors"

	"github.com/ideaspaper/sheets-reader-mcp/internal/dispatch"
)

// callRequest accepts the request shapes used by different clients:
//
//	{"name": "read_sheet", "arguments": {...}}
//	{"tool": "read_sheet", "args": {...}}
//	{"toolName": "read_sheet", "input": {...}}
//	{"jsonrpc": "2.0", "method": "tools/call", "params": {"name": ..., "arguments": {...}}}
type callRequest struct {
	Name      string         `json:"name"`
	Tool      string         `json:"tool"`
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
	Args      map[string]any `json:"args"`
	Input     map[string]any `json:"input"`

	Method string      `json:"method"`
	Params *callParams `json:"params"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

var (
	errMissingName       = errors.New("Missing required field: name")
	errUnsupportedMethod = errors.New("Unsupported method: only tools/call is accepted")
)

// normalize reduces the accepted shapes to a single Invocation.
func (c callRequest) normalize() (dispatch.Invocation, error) {
	if c.Method != "" || c.Params != nil {
		if c.Method != "" && !isJSONRPCCall(c.Method) {
			return dispatch.Invocation{}, errUnsupportedMethod
		}
		if c.Params == nil || c.Params.Name == "" {
			return dispatch.Invocation{}, errMissingName
		}
		return dispatch.Invocation{Name: c.Params.Name, Arguments: orEmpty(c.Params.Arguments)}, nil
	}

	name := firstNonEmpty(c.Name, c.Tool, c.ToolName)
	if name == "" {
		return dispatch.Invocation{}, errMissingName
	}

	args := c.Arguments
	if args == nil {
		args = c.Args
	}
	if args == nil {
		args = c.Input
	}
	return dispatch.Invocation{Name: name, Arguments: orEmpty(args)}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orEmpty(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
