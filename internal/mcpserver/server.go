// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes read-only scan tools over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ferrix/tagscan/internal/extract"
	"github.com/ferrix/tagscan/internal/scanner"
)

// Server wraps the MCP server with tagscan tools. Every tool runs a fresh
// scan and reads the result; nothing here mutates index or cache state
// beyond what an ordinary scan does.
type Server struct {
	mcp    *server.MCPServer
	walker *scanner.Walker
}

// New creates an MCP server with all tagscan tools registered.
func New(walker *scanner.Walker) *Server {
	s := &Server{walker: walker}

	s.mcp = server.NewMCPServer(
		"tagscan",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_items",
		mcp.WithDescription("Scan the tree and return all annotation items (TODO, FIXME, ...) as JSON."),
		mcp.WithString("tag", mcp.Description("Optional tag filter, e.g. TODO")),
	), s.scanItems)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Scan the tree and return items whose message contains the query (case-insensitive)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to search for in item messages")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("tag_counts",
		mcp.WithDescription("Scan the tree and return per-tag item counts plus the files-scanned total."),
	), s.tagCounts)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) scanItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.walker.Scan(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res.Sort()

	tag := strings.ToUpper(req.GetString("tag", ""))
	items := res.Items
	if tag != "" {
		filtered := make([]extract.Item, 0, len(items))
		for _, it := range items {
			if it.Tag == tag {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.walker.Scan(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res.Sort()

	needle := strings.ToLower(query)
	var hits []extract.Item
	for _, it := range res.Items {
		if strings.Contains(strings.ToLower(it.Message), needle) {
			hits = append(hits, it)
		}
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no items found"), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) tagCounts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.walker.Scan(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	counts := make(map[string]int)
	for _, it := range res.Items {
		counts[it.Tag]++
	}
	payload := map[string]any{
		"files_scanned": res.FilesScanned,
		"total":         len(res.Items),
		"tag_counts":    counts,
	}
	out, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
