// Package mcp serves a stored connection graph over the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/storage"
)

// Version is reported to clients during initialization
const Version = "1.0.0"

const defaultLimit = 50

// Server exposes graph queries as MCP tools
type Server struct {
	db        *storage.DB
	mcpServer *mcp.Server
}

// NewServer creates a new MCP server over db
func NewServer(db *storage.DB) *Server {
	s := &Server{
		db: db,
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "connviz",
			Version: Version,
		}, nil),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves requests on stdin/stdout until the client disconnects or ctx ends
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one session on an arbitrary transport
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

// findNode resolves a user-supplied name to one stored node: an exact
// identity first, then the best pattern match
func (s *Server) findNode(name string) (*graph.Node, error) {
	if name == "" {
		return nil, fmt.Errorf("需要提供组件名称")
	}
	if n, err := s.db.GetNodeByID(name); err == nil {
		return n, nil
	}
	nodes, err := s.db.FindNodesByPattern(name)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("未找到组件: %s", name)
	}
	return nodes[0], nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "错误：" + msg}},
		IsError: true,
	}
}

func limitOr(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}
