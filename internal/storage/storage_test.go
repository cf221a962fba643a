package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/connviz/internal/diag"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/marker"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(
		[]graph.Node{
			{ID: "shop.web.Storefront", Label: "Storefront", Package: "shop.web", Roles: []marker.Kind{marker.KindRestClient}},
			{ID: "shop.orders.Api", Label: "Api", Package: "shop.orders",
				Roles: []marker.Kind{marker.KindRestEndpoint, marker.KindMQSender}, Members: []string{"shop.orders.Api"}},
			{ID: "shop.ship.Shipper", Label: "Shipper", Package: "shop.ship",
				Roles: []marker.Kind{marker.KindMQListener, marker.KindMQSender}},
			{ID: "ext:messaging:audit", Label: "audit", Roles: []marker.Kind{marker.KindMQListener}, Placeholder: true},
		},
		[]graph.Edge{
			{From: "shop.web.Storefront", To: "shop.orders.Api", Kind: graph.EdgeREST, Label: "GET /orders"},
			{From: "shop.orders.Api", To: "shop.ship.Shipper", Kind: graph.EdgeMessaging, Label: "orders"},
			{From: "shop.ship.Shipper", To: "ext:messaging:audit", Kind: graph.EdgeMessaging, Label: "audit"},
		})
	require.NoError(t, err)
	return g
}

func saved(t *testing.T) *DB {
	t.Helper()
	db := openTemp(t)
	warnings := diag.Warnings{diag.Unresolved("shop.ship.Shipper", "no listener for %q", "audit")}
	require.NoError(t, db.SaveGraph(sampleGraph(t), warnings))
	return db
}

func TestSaveAndLoadGraph(t *testing.T) {
	db := saved(t)
	want := sampleGraph(t)

	g, warnings, err := db.LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, want.Nodes(), g.Nodes())
	assert.Equal(t, want.Edges(), g.Edges())
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.UnresolvedReference, warnings[0].Kind)

	savedAt, err := db.GetMeta(MetaSavedAt)
	require.NoError(t, err)
	assert.NotEmpty(t, savedAt)
	runID, err := db.GetMeta(MetaRunID)
	require.NoError(t, err)
	assert.Len(t, runID, 36)
	missing, err := db.GetMeta("nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSaveGraphReplacesPreviousGraph(t *testing.T) {
	db := saved(t)
	first, err := db.GetMeta(MetaRunID)
	require.NoError(t, err)
	g, err := graph.New([]graph.Node{{ID: "only", Label: "only"}}, nil)
	require.NoError(t, err)
	require.NoError(t, db.SaveGraph(g, nil))
	second, err := db.GetMeta(MetaRunID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	nodes, edges, err := db.GetStats()
	require.NoError(t, err)
	assert.EqualValues(t, 1, nodes)
	assert.EqualValues(t, 0, edges)
	ws, err := db.GetWarnings("")
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestFindNodesByPattern(t *testing.T) {
	db := saved(t)
	nodes, err := db.FindNodesByPattern("Shipper")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "shop.ship.Shipper", nodes[0].ID)
	assert.Equal(t, []marker.Kind{marker.KindMQListener, marker.KindMQSender}, nodes[0].Roles)

	nodes, err = db.FindNodesByPattern("shop")
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
}

func TestDirectNeighbors(t *testing.T) {
	db := saved(t)
	up, err := db.GetDirectUpstream("shop.orders.Api")
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, "shop.web.Storefront", up[0].ID)

	down, err := db.GetDirectDownstream("shop.orders.Api", graph.EdgeREST)
	require.NoError(t, err)
	assert.Empty(t, down)
	down, err = db.GetDirectDownstream("shop.orders.Api", graph.EdgeMessaging)
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Equal(t, "shop.ship.Shipper", down[0].ID)
}

func TestTransitiveQueries(t *testing.T) {
	db := saved(t)
	down, err := db.GetDownstream("shop.web.Storefront", 0)
	require.NoError(t, err)
	assert.Len(t, down, 3)

	down, err = db.GetDownstream("shop.web.Storefront", 1)
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Equal(t, "shop.orders.Api", down[0].ID)

	up, err := db.GetUpstream("ext:messaging:audit", 0)
	require.NoError(t, err)
	assert.Len(t, up, 3)
}

func TestTransitiveQueriesTerminateOnCycles(t *testing.T) {
	db := openTemp(t)
	g, err := graph.New(
		[]graph.Node{{ID: "a"}, {ID: "b"}},
		[]graph.Edge{{From: "a", To: "b", Kind: graph.EdgeMessaging}, {From: "b", To: "a", Kind: graph.EdgeMessaging}})
	require.NoError(t, err)
	require.NoError(t, db.SaveGraph(g, nil))

	down, err := db.GetDownstream("a", 0)
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Equal(t, "b", down[0].ID)

	tree, err := db.GetDownstreamTree("a", 5)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "a", tree[0].Children[0].Node.ID)
	assert.Empty(t, tree[0].Children[0].Children)
}

func TestTrees(t *testing.T) {
	db := saved(t)
	tree, err := db.GetDownstreamTree("shop.web.Storefront", 3)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "shop.orders.Api", tree[0].Node.ID)
	assert.Equal(t, "GET /orders", tree[0].Edge.Label)
	require.Len(t, tree[0].Children, 1)
	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, "ext:messaging:audit", tree[0].Children[0].Children[0].Node.ID)

	up, err := db.GetUpstreamTree("shop.ship.Shipper", 1)
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, "shop.orders.Api", up[0].Node.ID)
	assert.Empty(t, up[0].Children)
}

func TestRolesAndKinds(t *testing.T) {
	db := saved(t)
	senders, err := db.GetNodesByRole(marker.KindMQSender)
	require.NoError(t, err)
	assert.Len(t, senders, 2)

	edges, err := db.GetEdgesByKind(graph.EdgeMessaging)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	nodes, err := db.GetNodesByPackage([]string{"shop.orders", "shop.ship"})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestInsertEdgeRequiresNodes(t *testing.T) {
	db := openTemp(t)
	require.NoError(t, db.InsertNode(&graph.Node{ID: "a", Label: "a"}))
	assert.Error(t, db.InsertEdge(&graph.Edge{From: "a", To: "missing", Kind: graph.EdgeREST}))
}
