package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/connviz/internal/diag"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/marker"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(
		[]graph.Node{
			{ID: "shop.web.Storefront", Label: "Storefront", Package: "shop.web", Roles: []marker.Kind{marker.KindRestClient}},
			{ID: "shop.orders.OrderController", Label: "OrderController", Package: "shop.orders",
				Roles: []marker.Kind{marker.KindRestEndpoint}},
			{ID: "shop.orders.OrderPublisher", Label: "OrderPublisher", Package: "shop.orders",
				Roles: []marker.Kind{marker.KindMQSender}},
			{ID: "ext:messaging:orders-queue", Label: "orders-queue", Placeholder: true,
				Roles: []marker.Kind{marker.KindMQListener}},
			{ID: "ext:rest:payments.example.com", Label: "payments.example.com", Placeholder: true,
				Roles: []marker.Kind{marker.KindRestEndpoint}},
		},
		[]graph.Edge{
			{From: "shop.web.Storefront", To: "shop.orders.OrderController", Kind: graph.EdgeREST, Label: "GET /orders"},
			{From: "shop.web.Storefront", To: "ext:rest:payments.example.com", Kind: graph.EdgeREST, Label: "POST /charges/{}"},
			{From: "shop.orders.OrderPublisher", To: "ext:messaging:orders-queue", Kind: graph.EdgeMessaging, Label: "orders-queue"},
		})
	require.NoError(t, err)
	return g
}

func TestPumlAlias(t *testing.T) {
	cases := map[string]string{
		"com.acme.OrderApi":          "com.acme.OrderApi",
		"ext:messaging:orders-queue": "ext.messaging.orders.queue",
		"ext:rest:GET /orders/{}":    "ext.rest.GET.orders",
		"ext:rest:* /ping":           "ext.rest.ping",
		"Outer$Inner":                "OuterInner",
		"a=b":                        "a_b",
		"":                           "_",
	}
	for in, want := range cases {
		assert.Equal(t, want, pumlAlias(in), in)
	}
	assert.Equal(t, "ext_messaging_orders_queue", makeNodeID("ext:messaging:orders-queue"))
}

func TestAliasesAreUnique(t *testing.T) {
	a := newAliases(pumlAlias)
	first := a.of("ext:rest:GET /orders/{}")
	second := a.of("ext:rest:GET /orders/")
	assert.Equal(t, "ext.rest.GET.orders", first)
	assert.Equal(t, "ext.rest.GET.orders_2", second)
	assert.Equal(t, first, a.of("ext:rest:GET /orders/{}"))
}

func TestPlantUML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(sampleGraph(t), DefaultExportOptions()).PlantUML(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "@startuml\n"))
	assert.True(t, strings.HasSuffix(out, "@enduml\n"))
	assert.Contains(t, out, "queue \"orders-queue\" as ext.messaging.orders.queue\n")
	assert.Contains(t, out, "cloud \"payments.example.com\" as ext.rest.payments.example.com\n")
	assert.Contains(t, out, "package \"shop.orders\" {\n  component \"OrderController\" as shop.orders.OrderController <<rest-endpoint>>\n")
	assert.Contains(t, out, "shop.web.Storefront --> shop.orders.OrderController : GET /orders\n")
	assert.Contains(t, out, "shop.orders.OrderPublisher ..> ext.messaging.orders.queue : orders-queue\n")
	assert.Contains(t, out, "shop.web.Storefront --> ext.rest.payments.example.com : POST /charges/{}\n")
}

func TestPlantUMLWithoutPackages(t *testing.T) {
	opts := DefaultExportOptions()
	opts.GroupPackages = false
	opts.Title = ""
	var buf bytes.Buffer
	require.NoError(t, NewExporter(sampleGraph(t), opts).PlantUML(&buf))
	assert.NotContains(t, buf.String(), "package ")
	assert.NotContains(t, buf.String(), "title ")
}

func TestMermaid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(sampleGraph(t), DefaultExportOptions()).Mermaid(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "flowchart LR\n"))
	assert.Contains(t, out, `ext_messaging_orders_queue>"orders-queue"]`)
	assert.Contains(t, out, `ext_rest_payments_example_com(("payments.example.com"))`)
	assert.Contains(t, out, `subgraph pkg1 ["shop.orders"]`)
	assert.Contains(t, out, `shop_web_Storefront -->|"GET /orders"| shop_orders_OrderController`)
	assert.Contains(t, out, `shop_orders_OrderPublisher -.->|"orders-queue"| ext_messaging_orders_queue`)
}

func TestMarkdown(t *testing.T) {
	opts := DefaultExportOptions()
	opts.Warnings = diag.Warnings{
		diag.Unresolved("shop.orders.OrderPublisher", "mq-sender messaging %q has no matching mq-listener", "orders-queue"),
	}
	var buf bytes.Buffer
	require.NoError(t, NewExporter(sampleGraph(t), opts).Markdown(&buf))
	out := buf.String()

	assert.Contains(t, out, "# 服务连接图\n")
	assert.Contains(t, out, "> 组件: 3 | 外部目标: 2 | 连接: 3 | rest: 2 | messaging: 1\n")
	assert.Contains(t, out, "```mermaid\nflowchart LR\n")
	assert.Contains(t, out, "### 📦 shop.orders\n")
	assert.Contains(t, out, "| `OrderController` | rest-endpoint | `Storefront` | - |\n")
	assert.Contains(t, out, "| messaging | `orders-queue` | `OrderPublisher` | `orders-queue` |\n")
	assert.Contains(t, out, "| info | UnresolvedReference | `shop.orders.OrderPublisher` |")
	assert.NotContains(t, out, "生成时间")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(sampleGraph(t), DefaultExportOptions()).JSON(&buf))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Len(t, doc.Nodes, 5)
	assert.Len(t, doc.Edges, 3)
	assert.Equal(t, 2, doc.Stats.Placeholders)
	assert.NotNil(t, doc.Warnings)
}

func TestExportDispatch(t *testing.T) {
	e := NewExporter(sampleGraph(t), DefaultExportOptions())
	for _, f := range Formats {
		var buf bytes.Buffer
		require.NoError(t, e.Export(&buf, f), f)
		assert.NotEmpty(t, buf.String(), f)
	}
	assert.Error(t, e.Export(&bytes.Buffer{}, "svg"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("PUML")
	require.NoError(t, err)
	assert.Equal(t, FormatPlantUML, f)
	f, err = ParseFormat("md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)
	_, err = ParseFormat("svg")
	assert.Error(t, err)

	assert.Equal(t, FormatMermaid, FormatFromPath("out/graph.mmd"))
	assert.Equal(t, FormatJSON, FormatFromPath("graph.JSON"))
	assert.Equal(t, FormatPlantUML, FormatFromPath("graph.puml"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteErrorsPropagate(t *testing.T) {
	e := NewExporter(sampleGraph(t), DefaultExportOptions())
	assert.EqualError(t, e.PlantUML(failingWriter{}), "disk full")
	assert.EqualError(t, e.Markdown(failingWriter{}), "disk full")
}

func TestWebSocketAndDependencyRendering(t *testing.T) {
	g, err := graph.New(
		[]graph.Node{
			{ID: "app.Feed", Label: "Feed", Package: "app", Roles: []marker.Kind{marker.KindWSClient}},
			{ID: "app.Repo", Label: "Repo", Package: "app", Roles: []marker.Kind{marker.KindRepository}},
			{ID: "ext:ws:prices.internal", Label: "prices.internal", Placeholder: true,
				Roles: []marker.Kind{marker.KindWSEndpoint}},
		},
		[]graph.Edge{
			{From: "app.Feed", To: "ext:ws:prices.internal", Kind: graph.EdgeWebSocket, Label: "/ws/prices"},
			{From: "app.Feed", To: "app.Repo", Kind: graph.EdgeDependency},
		})
	require.NoError(t, err)
	x := NewExporter(g, DefaultExportOptions())

	var puml bytes.Buffer
	require.NoError(t, x.PlantUML(&puml))
	assert.Contains(t, puml.String(), "interface \"prices.internal\" as ext.ws.prices.internal\n")
	assert.Contains(t, puml.String(), "app.Feed -[dashed]-> ext.ws.prices.internal : /ws/prices\n")
	assert.Contains(t, puml.String(), "app.Feed -[dotted]-> app.Repo\n")

	var mmd bytes.Buffer
	require.NoError(t, x.Mermaid(&mmd))
	assert.Contains(t, mmd.String(), `ext_ws_prices_internal{{"prices.internal"}}`)
	assert.Contains(t, mmd.String(), `app_Feed <-->|"/ws/prices"| ext_ws_prices_internal`)
	assert.Contains(t, mmd.String(), "app_Feed --o app_Repo\n")
}
