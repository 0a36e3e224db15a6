package dispatch

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
)

// Schema is a tool input schema resolved for argument validation.
type Schema struct {
	required map[string]bool
	order    []string
	props    map[string]*propertySchema
}

type propertySchema struct {
	value *jsonschema.Resolved
	// item is set for arrays that declare items, so violations can name
	// the offending element.
	item *jsonschema.Resolved
}

// CompileSchema resolves every declared property of schema. Required fields
// are checked first in declared order, then the remaining declared
// properties in name order. Undeclared arguments are ignored.
func CompileSchema(schema mcp.ToolInputSchema) (*Schema, error) {
	s := &Schema{
		required: make(map[string]bool, len(schema.Required)),
		props:    make(map[string]*propertySchema, len(schema.Properties)),
	}

	for name, raw := range schema.Properties {
		prop, err := compileProperty(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		s.props[name] = prop
	}

	for _, name := range schema.Required {
		if s.required[name] {
			continue
		}
		s.required[name] = true
		s.order = append(s.order, name)
	}
	rest := make([]string, 0, len(s.props))
	for name := range s.props {
		if !s.required[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	s.order = append(s.order, rest...)
	return s, nil
}

func compileProperty(raw any) (*propertySchema, error) {
	value, err := resolve(raw)
	if err != nil {
		return nil, err
	}
	prop := &propertySchema{value: value}

	if m, ok := raw.(map[string]any); ok && m["items"] != nil {
		if prop.item, err = resolve(m["items"]); err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
	}
	return prop, nil
}

func resolve(raw any) (*jsonschema.Resolved, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, err
	}
	return schema.Resolve(nil)
}

// Validate returns the first violation in args as a *ValidationError.
func (s *Schema) Validate(args map[string]any) error {
	for _, name := range s.order {
		value, ok := args[name]
		if !ok || value == nil {
			if s.required[name] {
				return &ValidationError{Field: name, Reason: "is required"}
			}
			continue
		}

		prop := s.props[name]
		if prop == nil {
			continue
		}
		if err := prop.value.Validate(value); err != nil {
			return prop.violation(name, value, err)
		}
	}
	return nil
}

func (p *propertySchema) violation(name string, value any, err error) error {
	if p.item != nil {
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			for i := 0; i < rv.Len(); i++ {
				if ierr := p.item.Validate(rv.Index(i).Interface()); ierr != nil {
					return &ValidationError{Field: fmt.Sprintf("%s[%d]", name, i), Reason: reason(ierr)}
				}
			}
		}
	}
	return &ValidationError{Field: name, Reason: reason(err)}
}

// reason strips the schema location prefixes jsonschema adds to its errors.
func reason(err error) string {
	msg := err.Error()
	for strings.HasPrefix(msg, "validating ") {
		i := strings.Index(msg, ": ")
		if i < 0 {
			break
		}
		msg = msg[i+2:]
	}
	return msg
}
