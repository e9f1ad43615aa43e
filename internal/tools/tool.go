// Package tools provides the callable tools exposed to the assistant over MCP
// and HTTP. It defines the Tool interface, shared types, and the registry.
package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/courtside/courtside-cli/internal/observe"
)

// Tool is a callable function the assistant can invoke.
type Tool interface {
	// Def returns the tool's definition (name, description, parameters schema).
	Def() ToolDef
	// Call executes the tool with JSON-encoded arguments and returns the result string.
	Call(ctx context.Context, argsJSON string) string
}

// ToolDef is the tool definition advertised to clients.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters describes the JSON Schema for the tool's input.
type ToolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

// ToolProperty describes a single parameter field.
type ToolProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
	Minimum     *int     `json:"minimum,omitempty"`
	Maximum     *int     `json:"maximum,omitempty"`
}

// Deps are the collaborators the built-in tools need.
type Deps struct {
	Predictor Predictor
	Exchange  Converter

	// Desktop exposes shell_exec and filesystem.
	Desktop bool
	// Workdir is the default directory for desktop tools.
	Workdir string
}

// Defaults returns the built-in tools enabled by deps.
func Defaults(deps Deps) []Tool {
	var out []Tool
	if deps.Predictor != nil {
		out = append(out, NewNBAPredictTool(deps.Predictor))
	}
	if deps.Exchange != nil {
		out = append(out, NewExchangeRateTool(deps.Exchange))
	}
	if deps.Desktop {
		out = append(out,
			NewShellExecTool(deps.Workdir),
			NewFilesystemTool(deps.Workdir),
		)
	}
	return out
}

// ErrUnknownTool is returned by [Registry.Call] for an unregistered name.
var ErrUnknownTool = errors.New("unknown tool")

// Registry indexes tools by name, preserving registration order.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry builds a registry. A duplicate name keeps the first tool.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Def().Name
		if _, dup := r.byName[name]; dup {
			continue
		}
		r.tools = append(r.tools, t)
		r.byName[name] = t
	}
	return r
}

// Tools returns the registered tools in order.
func (r *Registry) Tools() []Tool { return r.tools }

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Call runs the named tool and records the outcome.
func (r *Registry) Call(ctx context.Context, name, argsJSON string) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		observe.DefaultMetrics().RecordToolCall(ctx, name, "unknown")
		return "", ErrUnknownTool
	}
	if strings.TrimSpace(argsJSON) == "" {
		argsJSON = "{}"
	}
	out := t.Call(ctx, argsJSON)
	status := "ok"
	if IsErrorResult(out) {
		status = "error"
	}
	observe.DefaultMetrics().RecordToolCall(ctx, name, status)
	return out, nil
}

// IsErrorResult reports whether a tool result string is an error message.
func IsErrorResult(out string) bool {
	return strings.HasPrefix(out, "error") || strings.HasPrefix(out, "Error:")
}

func intPtr(v int) *int { return &v }
