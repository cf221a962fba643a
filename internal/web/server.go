// Package web serves a stored connection graph as a JSON API with a
// Mermaid-rendered overview page.
package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/zheng/connviz/internal/display"
	"github.com/zheng/connviz/internal/export"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/marker"
	"github.com/zheng/connviz/internal/storage"
)

// Server is the web server for browsing connection graphs
type Server struct {
	db   *storage.DB
	port int
}

// NewServer creates a new web server
func NewServer(db *storage.DB, port int) *Server {
	return &Server{db: db, port: port}
}

// API response types
type NodeData struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Short       string   `json:"short"`
	Package     string   `json:"package"`
	Roles       []string `json:"roles"`
	Placeholder bool     `json:"placeholder"`
}

type EdgeData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

type NodeDetail struct {
	Node       NodeData   `json:"node"`
	Upstream   []NodeData `json:"upstream"`
	Downstream []NodeData `json:"downstream"`
	Edges      []EdgeData `json:"edges"`
}

// TreeData is one level of an upstream or downstream tree
type TreeData struct {
	NodeData
	Edge     EdgeData   `json:"edge"`
	Children []TreeData `json:"children,omitempty"`
}

type ChainData struct {
	Target     NodeData   `json:"target"`
	Upstream   []TreeData `json:"upstream"`
	Downstream []TreeData `json:"downstream"`
}

type StatsData struct {
	NodeCount int64  `json:"nodeCount"`
	EdgeCount int64  `json:"edgeCount"`
	SavedAt   string `json:"savedAt,omitempty"`
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/graph", s.handleGraph)
	mux.HandleFunc("GET /api/nodes", s.handleNodes)
	mux.HandleFunc("GET /api/node/{id...}", s.handleNode)
	mux.HandleFunc("GET /api/chain/{id...}", s.handleChain)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	return mux
}

// Run starts the web server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("🌐 Web UI 启动: http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// handleGraph returns the graph as an export document
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	exp, err := s.exporter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, exp.Document())
}

// handleNodes returns all nodes, optionally of one role
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	var (
		nodes []*graph.Node
		err   error
	)
	if role := r.URL.Query().Get("role"); role != "" {
		nodes, err = s.db.GetNodesByRole(marker.Kind(role))
	} else {
		nodes, err = s.db.GetAllNodes()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, nodesToData(nodes))
}

// handleNode returns a single node with its direct connections
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	node, ok := s.lookup(w, r)
	if !ok {
		return
	}

	upstream, _ := s.db.GetDirectUpstream(node.ID)
	downstream, _ := s.db.GetDirectDownstream(node.ID)
	edges, _ := s.db.GetEdgesForNode(node.ID)

	writeJSON(w, NodeDetail{
		Node:       nodeToData(node),
		Upstream:   nodesToData(upstream),
		Downstream: nodesToData(downstream),
		Edges:      edgesToData(edges),
	})
}

// handleChain returns the upstream and downstream trees of a node
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	node, ok := s.lookup(w, r)
	if !ok {
		return
	}

	depth := 2
	if d := r.URL.Query().Get("depth"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil {
			depth = parsed
		}
	}

	up, err := s.db.GetUpstreamTree(node.ID, depth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	down, err := s.db.GetDownstreamTree(node.ID, depth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, ChainData{
		Target:     nodeToData(node),
		Upstream:   treeToData(up),
		Downstream: treeToData(down),
	})
}

// handleSearch searches for nodes by pattern
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("q")
	if pattern == "" {
		writeJSON(w, []NodeData{})
		return
	}

	nodes, err := s.db.FindNodesByPattern(pattern)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, nodesToData(nodes))
}

// handleExport renders the graph in ?format= (default mermaid)
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := export.FormatMermaid
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := export.ParseFormat(f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = parsed
	}
	exp, err := s.exporter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == export.FormatJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	if err := exp.Export(w, format); err != nil {
		log.Printf("export: %v", err)
	}
}

// handleStats returns database statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	nodeCount, edgeCount, _ := s.db.GetStats()
	savedAt, _ := s.db.GetMeta(storage.MetaSavedAt)
	writeJSON(w, StatsData{
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
		SavedAt:   savedAt,
	})
}

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script type="module">
import mermaid from "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.esm.min.mjs";
mermaid.initialize({ startOnLoad: true, maxTextSize: 500000 });
</script>
</head>
<body>
<h1>{{.Title}}</h1>
<pre class="mermaid">{{.Diagram}}</pre>
</body>
</html>
`))

// handleIndex renders the whole graph as a Mermaid page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	exp, err := s.exporter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var sb strings.Builder
	if err := exp.Mermaid(&sb); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	indexPage.Execute(w, map[string]string{
		"Title":   export.DefaultExportOptions().Title,
		"Diagram": sb.String(),
	})
}

func (s *Server) exporter(r *http.Request) (*export.Exporter, error) {
	g, warnings, err := s.db.LoadGraph()
	if err != nil {
		return nil, err
	}
	opts := export.DefaultExportOptions()
	opts.Warnings = warnings
	if t := r.URL.Query().Get("title"); t != "" {
		opts.Title = t
	}
	return export.NewExporter(g, opts), nil
}

// lookup resolves the {id} path value, writing 404 when it is unknown
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*graph.Node, bool) {
	node, err := s.db.GetNodeByID(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return nil, false
	}
	return node, true
}

// Helper functions
func nodeToData(n *graph.Node) NodeData {
	roles := make([]string, len(n.Roles))
	for i, r := range n.Roles {
		roles[i] = string(r)
	}
	return NodeData{
		ID:          n.ID,
		Label:       n.Label,
		Short:       display.ShortName(n.ID),
		Package:     n.Package,
		Roles:       roles,
		Placeholder: n.Placeholder,
	}
}

func nodesToData(nodes []*graph.Node) []NodeData {
	result := make([]NodeData, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, nodeToData(n))
	}
	return result
}

func edgeToData(e *graph.Edge) EdgeData {
	return EdgeData{From: e.From, To: e.To, Kind: string(e.Kind), Label: e.Label}
}

func edgesToData(edges []*graph.Edge) []EdgeData {
	result := make([]EdgeData, 0, len(edges))
	for _, e := range edges {
		result = append(result, edgeToData(e))
	}
	return result
}

func treeToData(tree []*storage.TreeNode) []TreeData {
	result := make([]TreeData, 0, len(tree))
	for _, t := range tree {
		result = append(result, TreeData{
			NodeData: nodeToData(t.Node),
			Edge:     edgeToData(t.Edge),
			Children: treeToData(t.Children),
		})
	}
	return result
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(data)
}
