package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/connviz/internal/analysis"
	"github.com/zheng/connviz/internal/classfile"
	cft "github.com/zheng/connviz/internal/classfile/classfiletest"
	"github.com/zheng/connviz/internal/storage"
)

func newShopServer(t *testing.T) *Server {
	t.Helper()
	var artifacts []classfile.Artifact
	for _, n := range cft.Shop() {
		artifacts = append(artifacts, classfile.BytesArtifact(n.Name, n.Data))
	}
	res, err := analysis.Run(context.Background(), artifacts, nil)
	require.NoError(t, err)

	db, err := storage.Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SaveGraph(res.Graph, res.Warnings))
	return NewServer(db)
}

func TestSearch(t *testing.T) {
	s := newShopServer(t)
	out, err := s.search(SearchArgs{Pattern: "Order"})
	require.NoError(t, err)
	assert.Contains(t, out, "shop.orders.OrderController")
	assert.Contains(t, out, "rest-endpoint")

	out, err = s.search(SearchArgs{Role: "repository"})
	require.NoError(t, err)
	assert.Contains(t, out, "shop.orders.OrderRepository")
	assert.NotContains(t, out, "OrderController")

	out, err = s.search(SearchArgs{Pattern: "Order", Role: "entity", Limit: 1})
	require.NoError(t, err)
	assert.Contains(t, out, "shop.orders.Order ")

	out, err = s.search(SearchArgs{Pattern: "nothing-like-this"})
	require.NoError(t, err)
	assert.Contains(t, out, "未找到")

	_, err = s.search(SearchArgs{})
	assert.Error(t, err)
}

func TestConnections(t *testing.T) {
	s := newShopServer(t)
	out, err := s.connections(ConnectionsArgs{Node: "OrderController"})
	require.NoError(t, err)
	assert.Contains(t, out, "## 连接关系: shop.orders.OrderController")
	assert.Contains(t, out, "s.web.Storefront")
	assert.Contains(t, out, "[rest] GET /orders")
	assert.Contains(t, out, "_无下游组件_")

	out, err = s.connections(ConnectionsArgs{Node: "shop.orders.OrderRepository", Direction: "downstream"})
	require.NoError(t, err)
	assert.Contains(t, out, "[storage] orders")
	assert.NotContains(t, out, "### 上游")

	_, err = s.connections(ConnectionsArgs{Node: "OrderController", Direction: "sideways"})
	assert.Error(t, err)
	_, err = s.connections(ConnectionsArgs{Node: "Missing"})
	assert.Error(t, err)
}

func TestImpact(t *testing.T) {
	s := newShopServer(t)
	out, err := s.impact(ImpactArgs{Node: "shop.orders.Order"})
	require.NoError(t, err)
	assert.Contains(t, out, "## 变更影响分析: shop.orders.Order")
	assert.Contains(t, out, "s.orders.OrderRepository")
	assert.Contains(t, out, "| storage | orders |")
}

func TestEdgesAndWarnings(t *testing.T) {
	s := newShopServer(t)
	out, err := s.edges(EdgesArgs{Kind: "messaging"})
	require.NoError(t, err)
	assert.Contains(t, out, "--messaging--> ext:messaging:jms:orders-queue")
	assert.NotContains(t, out, "--rest-->")

	out, err = s.edges(EdgesArgs{Node: "Storefront", Kind: "storage"})
	require.NoError(t, err)
	assert.Contains(t, out, "_无连接_")

	out, err = s.edges(EdgesArgs{Limit: 1})
	require.NoError(t, err)
	assert.Contains(t, out, "共 3 个")

	out, err = s.warnings(WarningsArgs{Kind: "UnresolvedReference"})
	require.NoError(t, err)
	assert.Contains(t, out, "## 警告 (1)")
	out, err = s.warnings(WarningsArgs{Kind: "DuplicateIdentity"})
	require.NoError(t, err)
	assert.Contains(t, out, "_无警告_")
}

func TestExportAndStats(t *testing.T) {
	s := newShopServer(t)
	out, err := s.export(ExportArgs{})
	require.NoError(t, err)
	assert.Contains(t, out, "flowchart")

	out, err = s.export(ExportArgs{Format: "plantuml", Title: "shop"})
	require.NoError(t, err)
	assert.Contains(t, out, "@startuml")
	assert.Contains(t, out, "shop")

	_, err = s.export(ExportArgs{Format: "svg"})
	assert.Error(t, err)

	out, err = s.stats(StatsArgs{})
	require.NoError(t, err)
	assert.Contains(t, out, "- 连接: 3")
	assert.Contains(t, out, "- 外部目标: 1")
	assert.Contains(t, out, "分析时间")
}

func TestSchemas(t *testing.T) {
	m := buildSchemaMap()
	assert.Len(t, m, 7)
	assert.Contains(t, m["search"], `"pattern"`)
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	s := newShopServer(t)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search",
		Arguments: map[string]any{"pattern": "Publisher"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "shop.orders.OrderPublisher")

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "connections",
		Arguments: map[string]any{"node": "Missing"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
