// Package mcpsurface exposes goanalyzer/cursor and goanalyzer/ast as MCP
// tools for editors and agents that speak MCP instead of raw LSP
// (spec.md §4.9's secondary Request Surface). Wiring follows the
// mcp.NewServer(&mcp.Implementation{...}) / server.AddTool(&mcp.Tool{...},
// handler) pattern the teacher's internal/mcp/server.go used for its own
// codebase-search tools, now pointed at the analyzer's two commands.
package mcpsurface

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/goanalyzer/internal/logging"
	"github.com/standardbeagle/goanalyzer/internal/model"
)

// Analyzer is the subset of Server behavior the MCP tools need; kept as an
// interface so this package doesn't import lspserver directly.
type Analyzer interface {
	AnalyzeCursor(ctx context.Context, uri string, pos model.Position) ([]model.Decoration, error)
	DumpAST(ctx context.Context, uri string) (string, error)
}

type cursorArgs struct {
	URI      string         `json:"uri"`
	Position model.Position `json:"position"`
}

type astArgs struct {
	URI string `json:"uri"`
}

// New builds the MCP server with the two analyzer tools registered.
func New(a Analyzer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "goanalyzer-mcp", Version: "0.1.0"}, nil)
	log := logging.For("mcpsurface")

	mcp.AddTool(server, &mcp.Tool{
		Name:        "goanalyzer/cursor",
		Description: "Classify every use of the symbol at a cursor position (declaration, reassignment, pointer, captured, use, and race severity).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"uri":      {Type: "string"},
				"position": {Type: "object"},
			},
			Required: []string{"uri", "position"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args cursorArgs) (*mcp.CallToolResult, any, error) {
		decs, err := a.AnalyzeCursor(ctx, args.URI, args.Position)
		if err != nil {
			log.Debug("cursor tool failed", "err", err)
			return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, nil, nil
		}
		payload, _ := json.Marshal(decs)
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}}}, nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "goanalyzer/ast",
		Description: "Dump the current parsed CST for a buffer as an S-expression.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"uri": {Type: "string"}},
			Required:   []string{"uri"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args astArgs) (*mcp.CallToolResult, any, error) {
		dump, err := a.DumpAST(ctx, args.URI)
		if err != nil {
			return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, nil, nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: dump}}}, nil, nil
	})

	return server
}
