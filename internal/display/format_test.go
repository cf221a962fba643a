package display

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/marker"
	"github.com/zheng/connviz/internal/storage"
)

func TestShortName(t *testing.T) {
	assert.Equal(t, "c.a.shop.OrderController", ShortName("com.acme.shop.OrderController"))
	assert.Equal(t, "shop.Order", ShortName("shop.Order"))
	assert.Equal(t, "Order", ShortName("Order"))
	assert.Equal(t, "ext:rest:inventory", ShortName("ext:rest:inventory"))
}

func TestRolesAndEdgeLabel(t *testing.T) {
	assert.Equal(t, "-", Roles(nil))
	assert.Equal(t, "rest-endpoint,mq-sender", Roles([]marker.Kind{marker.KindRestEndpoint, marker.KindMQSender}))
	assert.Equal(t, "[rest] GET /orders", EdgeLabel(&graph.Edge{Kind: graph.EdgeREST, Label: "GET /orders"}))
	assert.Equal(t, "[storage]", EdgeLabel(&graph.Edge{Kind: graph.EdgeStorage}))
	assert.Empty(t, EdgeLabel(nil))
}

func TestRenderTree(t *testing.T) {
	tree := []*storage.TreeNode{
		{
			Node: &graph.Node{ID: "shop.orders.Api"},
			Edge: &graph.Edge{Kind: graph.EdgeREST, Label: "GET /orders"},
			Children: []*storage.TreeNode{{
				Node: &graph.Node{ID: "ext:messaging:audit"},
				Edge: &graph.Edge{Kind: graph.EdgeMessaging, Label: "audit"},
			}},
		},
		{
			Node: &graph.Node{ID: "shop.orders.Order"},
			Edge: &graph.Edge{Kind: graph.EdgeStorage, Label: "orders"},
		},
	}
	out := RenderTree(tree)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "├── s.orders.Api"))
	assert.True(t, strings.HasSuffix(lines[0], "[rest] GET /orders"))
	assert.True(t, strings.HasPrefix(lines[1], "│   └── ext:messaging:audit"))
	assert.True(t, strings.HasPrefix(lines[2], "└── s.orders.Order"))
	assert.Empty(t, RenderTree(nil))
}

func TestFormatNodesAndEdges(t *testing.T) {
	out := FormatNodes([]*graph.Node{
		{ID: "shop.web.Storefront", Package: "shop.web", Roles: []marker.Kind{marker.KindRestClient}},
		{ID: "ext:rest:inventory", Placeholder: true},
	})
	assert.Contains(t, out, "rest-client")
	assert.Contains(t, out, "(external)")

	out = FormatEdges([]*graph.Edge{{From: "a", To: "b", Kind: graph.EdgeMessaging, Label: "orders"}})
	assert.Equal(t, "a --messaging--> b  orders\n", out)
}
