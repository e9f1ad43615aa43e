// Package mcpserver serves the assistant tools over the Model Context
// Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/courtside/courtside-cli/internal/tools"
)

// New returns an MCP server exposing every tool in reg.
func New(reg *tools.Registry, version string) (*mcpsdk.Server, error) {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "courtside", Version: version}, nil)
	for _, t := range reg.Tools() {
		def := t.Def()
		schema, err := schemaToMap(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", def.Name, err)
		}
		server.AddTool(&mcpsdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		}, handler(reg, def.Name))
	}
	return server, nil
}

// Run serves reg over stdin/stdout until ctx is cancelled or the client
// disconnects.
func Run(ctx context.Context, reg *tools.Registry, version string) error {
	server, err := New(reg, version)
	if err != nil {
		return err
	}
	slog.Info("mcp server ready", "transport", "stdio", "tools", len(reg.Tools()))
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func handler(reg *tools.Registry, name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := "{}"
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			args = string(req.Params.Arguments)
		}
		out, err := reg.Call(ctx, name, args)
		if err != nil {
			return nil, err
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}},
			IsError: tools.IsErrorResult(out),
		}, nil
	}
}

// schemaToMap converts tool parameters to the generic object form the SDK
// accepts as an input schema.
func schemaToMap(p tools.ToolParameters) (map[string]any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
