package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zheng/connviz/internal/export"
)

const (
	graphURI      = "connviz://graph"
	schemasPrefix = "connviz://schemas/"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         graphURI,
		Name:        "Connection Graph",
		Description: "当前存储的连接图（JSON 文档）",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := s.graphDocument()
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      graphURI,
					MIMEType: "application/json",
					Text:     text,
				},
			},
		}, nil
	})

	schemaMap := buildSchemaMap()

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: schemasPrefix + "{tool_name}",
		Name:        "Tool Schema",
		Description: "JSON schema for the named tool's arguments",
		MIMEType:    "application/schema+json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		toolName := strings.TrimPrefix(uri, schemasPrefix)
		schemaJSON, ok := schemaMap[toolName]
		if !ok {
			return nil, fmt.Errorf("unknown tool schema: %q", toolName)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/schema+json",
					Text:     schemaJSON,
				},
			},
		}, nil
	})
}

func (s *Server) graphDocument() (string, error) {
	g, warnings, err := s.db.LoadGraph()
	if err != nil {
		return "", err
	}
	opts := export.DefaultExportOptions()
	opts.Warnings = warnings
	var sb strings.Builder
	if err := export.NewExporter(g, opts).JSON(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// buildSchemaMap maps each tool name to the JSON schema of its arguments
func buildSchemaMap() map[string]string {
	m := make(map[string]string)
	addSchema[SearchArgs](m, "search")
	addSchema[ConnectionsArgs](m, "connections")
	addSchema[ImpactArgs](m, "impact")
	addSchema[EdgesArgs](m, "edges")
	addSchema[ExportArgs](m, "export")
	addSchema[WarningsArgs](m, "warnings")
	addSchema[StatsArgs](m, "stats")
	return m
}

func addSchema[T any](m map[string]string, name string) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return
	}
	m[name] = string(schemaJSON)
}
