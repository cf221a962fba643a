package export

import (
	"encoding/json"
	"io"

	"github.com/zheng/connviz/internal/diag"
	"github.com/zheng/connviz/internal/graph"
)

// Document is the JSON rendering of a graph
type Document struct {
	Title    string        `json:"title,omitempty"`
	Stats    graph.Stats   `json:"stats"`
	Nodes    []graph.Node  `json:"nodes"`
	Edges    []graph.Edge  `json:"edges"`
	Warnings diag.Warnings `json:"warnings"`
}

// Document collects the JSON view of the graph
func (e *Exporter) Document() Document {
	doc := Document{
		Title:    e.opts.Title,
		Stats:    e.g.Stats(),
		Nodes:    e.g.Nodes(),
		Edges:    e.g.Edges(),
		Warnings: e.opts.Warnings,
	}
	if doc.Edges == nil {
		doc.Edges = []graph.Edge{}
	}
	if doc.Warnings == nil {
		doc.Warnings = diag.Warnings{}
	}
	return doc
}

// JSON writes the graph as an indented JSON document
func (e *Exporter) JSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e.Document())
}
