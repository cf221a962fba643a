package impact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/marker"
	"github.com/zheng/connviz/internal/storage"
)

// web -> api -> worker -> ext:messaging:audit
func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	g, err := graph.New(
		[]graph.Node{
			{ID: "shop.web.Storefront", Label: "Storefront", Package: "shop.web", Roles: []marker.Kind{marker.KindRestClient}},
			{ID: "shop.orders.OrderApi", Label: "OrderApi", Package: "shop.orders", Roles: []marker.Kind{marker.KindRestEndpoint, marker.KindMQSender}},
			{ID: "shop.orders.OrderWorker", Label: "OrderWorker", Package: "shop.orders", Roles: []marker.Kind{marker.KindMQListener, marker.KindMQSender}},
			{ID: "ext:messaging:audit", Label: "audit", Placeholder: true, Roles: []marker.Kind{marker.KindMQListener}},
		},
		[]graph.Edge{
			{From: "shop.web.Storefront", To: "shop.orders.OrderApi", Kind: graph.EdgeREST, Label: "POST /orders"},
			{From: "shop.orders.OrderApi", To: "shop.orders.OrderWorker", Kind: graph.EdgeMessaging, Label: "orders"},
			{From: "shop.orders.OrderWorker", To: "ext:messaging:audit", Kind: graph.EdgeMessaging, Label: "audit"},
		})
	require.NoError(t, err)

	db, err := storage.Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SaveGraph(g, nil))
	return NewAnalyzer(db)
}

func ids(nodes []*graph.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestAnalyzeImpact(t *testing.T) {
	a := newAnalyzer(t)
	r, err := a.AnalyzeImpact("shop.orders.OrderWorker", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop.orders.OrderApi"}, ids(r.DirectUpstream))
	assert.Equal(t, []string{"shop.web.Storefront"}, ids(r.IndirectUpstream))
	assert.Equal(t, []string{"ext:messaging:audit"}, ids(r.DirectDownstream))
	assert.Empty(t, r.IndirectDownstream)
	require.Len(t, r.Inbound, 1)
	assert.Equal(t, "orders", r.Inbound[0].Label)

	r, err = a.AnalyzeImpact("ext:messaging:audit", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop.orders.OrderWorker"}, ids(r.DirectUpstream))
	assert.Empty(t, r.IndirectUpstream)
	assert.Contains(t, r.Summary(), "Direct Upstream: 1")
}

func TestResolve(t *testing.T) {
	a := newAnalyzer(t)
	n, err := a.Resolve("OrderApi")
	require.NoError(t, err)
	assert.Equal(t, "shop.orders.OrderApi", n.ID)

	_, err = a.Resolve("Nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = a.Resolve("Order")
	var amb *AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Len(t, amb.Matches, 2)
}

func TestFormat(t *testing.T) {
	a := newAnalyzer(t)
	r, err := a.AnalyzeImpact("OrderApi", 0, 0)
	require.NoError(t, err)

	md := r.FormatMarkdown()
	assert.Contains(t, md, "## 变更影响分析: shop.orders.OrderApi")
	assert.Contains(t, md, "| s.web.Storefront | rest | POST /orders |")
	assert.Contains(t, md, "### 间接下游依赖")
	assert.Contains(t, md, "ext:messaging:audit")

	tree := r.FormatTree()
	assert.Contains(t, tree, "⬆️ 上游 (共 1 个)")
	assert.Contains(t, tree, "⬇️ 下游 (共 2 个)")
}
