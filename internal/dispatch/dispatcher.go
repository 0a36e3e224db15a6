// Package dispatch validates tool invocations, runs them and wraps their
// outcome in a uniform response envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ideaspaper/sheets-reader-mcp/internal/logging"
	"github.com/ideaspaper/sheets-reader-mcp/internal/tools"
)

// UnknownToolLabel is reported to observers in place of names that did not
// resolve, so arbitrary client input never becomes a metric label.
const UnknownToolLabel = "unknown"

// Invocation is a tool call normalized by the transport layer.
type Invocation struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Catalog resolves tool names to definitions.
type Catalog interface {
	Lookup(name string) (tools.Definition, error)
}

// Observer is notified after every invocation.
type Observer interface {
	ObserveInvocation(tool string, outcome Outcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveInvocation(string, Outcome, time.Duration) {}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for invocation records.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver registers an observer for invocation outcomes.
func WithObserver(observer Observer) Option {
	return func(d *Dispatcher) {
		if observer != nil {
			d.observer = observer
		}
	}
}

// Dispatcher routes invocations to registered tools. It is safe for
// concurrent use.
type Dispatcher struct {
	catalog  Catalog
	logger   *slog.Logger
	observer Observer

	schemas sync.Map // tool name -> *Schema
}

// New creates a Dispatcher over catalog.
func New(catalog Catalog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		catalog:  catalog,
		logger:   logging.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if lister, ok := catalog.(interface{ List() []tools.Definition }); ok {
		for _, def := range lister.List() {
			if _, err := d.schemaFor(def); err != nil {
				d.logger.Error("invalid tool input schema", "tool", def.Name(), "error", err)
			}
		}
	}
	return d
}

// schemaFor returns the compiled input schema of def, compiling it on first
// use.
func (d *Dispatcher) schemaFor(def tools.Definition) (*Schema, error) {
	if cached, ok := d.schemas.Load(def.Name()); ok {
		return cached.(*Schema), nil
	}
	schema, err := CompileSchema(def.Tool.InputSchema)
	if err != nil {
		return nil, err
	}
	actual, _ := d.schemas.LoadOrStore(def.Name(), schema)
	return actual.(*Schema), nil
}

// Invoke runs inv and always returns a result; failures are reported through
// Result.IsError and Result.Err.
func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation) *Result {
	start := time.Now()
	res := d.invoke(ctx, inv)
	elapsed := time.Since(start)

	label := inv.Name
	if res.Outcome() == OutcomeUnknownTool {
		label = UnknownToolLabel
	}
	d.observer.ObserveInvocation(label, res.Outcome(), elapsed)

	switch res.Outcome() {
	case OutcomeUpstreamError:
		d.logger.Warn("tool call failed upstream", "tool", inv.Name, "error", res.Err(), "elapsed", elapsed)
	case OutcomeInternalError:
		d.logger.Error("tool call failed", "tool", inv.Name, "error", res.Err(), "elapsed", elapsed)
	default:
		d.logger.Debug("tool call", "tool", inv.Name, "outcome", res.Outcome(), "elapsed", elapsed)
	}
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, inv Invocation) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = ErrorResult(OutcomeInternalError, "Error: internal error", fmt.Errorf("tool %s panicked: %v", inv.Name, r))
		}
	}()

	def, err := d.catalog.Lookup(inv.Name)
	if err != nil {
		var unknown *tools.UnknownToolError
		if !errors.As(err, &unknown) {
			err = &tools.UnknownToolError{Name: inv.Name}
		}
		return ErrorResult(OutcomeUnknownTool, fmt.Sprintf("Unknown tool: %s", inv.Name), err)
	}

	args := inv.Arguments
	if args == nil {
		args = map[string]any{}
	}

	schema, err := d.schemaFor(def)
	if err != nil {
		return ErrorResult(OutcomeInternalError, "Error: internal error", fmt.Errorf("tool %s: %w", inv.Name, err))
	}
	if err := schema.Validate(args); err != nil {
		return ErrorResult(OutcomeInvalidArguments, "Error: "+err.Error(), err)
	}

	call, err := def.Bind(args)
	if err != nil {
		verr := &ValidationError{Reason: err.Error()}
		return ErrorResult(OutcomeInvalidArguments, "Error: "+verr.Error(), verr)
	}

	out, err := call(ctx)
	if err != nil {
		uerr := &UpstreamError{Tool: inv.Name, Err: err}
		return ErrorResult(OutcomeUpstreamError, "Error: "+uerr.Error(), uerr)
	}

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return ErrorResult(OutcomeInternalError, fmt.Sprintf("Error: failed to marshal result: %v", err), err)
	}
	return TextResult(string(payload))
}
