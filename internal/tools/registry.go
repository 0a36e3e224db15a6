package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mitchellh/mapstructure"
)

// Call is a tool invocation whose arguments have already been bound.
type Call func(ctx context.Context) (any, error)

// Binder turns validated raw arguments into a ready-to-run Call.
type Binder func(args map[string]any) (Call, error)

// Definition describes a tool: its name, description and input schema (Tool)
// and how its arguments are bound to a handler.
type Definition struct {
	Tool mcp.Tool
	Bind Binder
}

// Name returns the registry key of the definition.
func (d Definition) Name() string {
	return d.Tool.Name
}

// Bind decodes raw arguments into the typed record A and returns a Binder
// that runs fn with it.
func Bind[A any](fn func(ctx context.Context, args A) (any, error)) Binder {
	return func(raw map[string]any) (Call, error) {
		var args A
		if err := mapstructure.Decode(raw, &args); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		return func(ctx context.Context) (any, error) {
			return fn(ctx, args)
		}, nil
	}
}

// UnknownToolError is returned by Lookup when no tool has the given name.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Unknown tool: %s", e.Name)
}

// DuplicateToolError is returned by Register when the name is already taken.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// Registry is the ordered catalog of available tools.
type Registry struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

// Register adds a definition. Names are case-sensitive and must be unique.
func (r *Registry) Register(def Definition) error {
	name := def.Name()
	if name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	if def.Bind == nil {
		return fmt.Errorf("tool %s has no binder", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// List returns every definition in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()

	if !ok {
		return Definition{}, &UnknownToolError{Name: name}
	}
	return def, nil
}
