package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/connviz/internal/analysis"
	"github.com/zheng/connviz/internal/classfile"
	cft "github.com/zheng/connviz/internal/classfile/classfiletest"
	"github.com/zheng/connviz/internal/export"
	"github.com/zheng/connviz/internal/storage"
)

func newShopHandler(t *testing.T) http.Handler {
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
	return NewServer(db, 0).Handler()
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestGraphAndStats(t *testing.T) {
	h := newShopHandler(t)
	doc := decode[export.Document](t, get(t, h, "/api/graph?title=shop"))
	assert.Equal(t, "shop", doc.Title)
	assert.Len(t, doc.Edges, 3)

	stats := decode[StatsData](t, get(t, h, "/api/stats"))
	assert.EqualValues(t, 6, stats.NodeCount)
	assert.EqualValues(t, 3, stats.EdgeCount)
	assert.NotEmpty(t, stats.SavedAt)
}

func TestNodes(t *testing.T) {
	h := newShopHandler(t)
	all := decode[[]NodeData](t, get(t, h, "/api/nodes"))
	assert.Len(t, all, 6)

	endpoints := decode[[]NodeData](t, get(t, h, "/api/nodes?role=rest-endpoint"))
	require.Len(t, endpoints, 1)
	assert.Equal(t, "shop.orders.OrderController", endpoints[0].ID)
	assert.Equal(t, "s.orders.OrderController", endpoints[0].Short)

	found := decode[[]NodeData](t, get(t, h, "/api/search?q=Repository"))
	require.Len(t, found, 1)
	assert.Equal(t, []string{"repository"}, found[0].Roles)
	assert.Empty(t, decode[[]NodeData](t, get(t, h, "/api/search")))
}

func TestNodeDetailAndChain(t *testing.T) {
	h := newShopHandler(t)
	detail := decode[NodeDetail](t, get(t, h, "/api/node/shop.orders.OrderController"))
	require.Len(t, detail.Upstream, 1)
	assert.Equal(t, "shop.web.Storefront", detail.Upstream[0].ID)
	assert.Empty(t, detail.Downstream)
	require.Len(t, detail.Edges, 1)
	assert.Equal(t, "GET /orders", detail.Edges[0].Label)

	chain := decode[ChainData](t, get(t, h, "/api/chain/shop.orders.OrderRepository?depth=1"))
	require.Len(t, chain.Downstream, 1)
	assert.Equal(t, "shop.orders.Order", chain.Downstream[0].ID)
	assert.Equal(t, "storage", chain.Downstream[0].Edge.Kind)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/node/shop.Missing").Code)
}

func TestExportAndIndex(t *testing.T) {
	h := newShopHandler(t)
	rec := get(t, h, "/api/export?format=plantuml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "@startuml")

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/export?format=svg").Code)

	rec = get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<pre class="mermaid">`)
	assert.Contains(t, rec.Body.String(), "flowchart LR")
}
