package graph

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/zheng/connviz/internal/classfile"
	"github.com/zheng/connviz/internal/config"
	"github.com/zheng/connviz/internal/diag"
	"github.com/zheng/connviz/internal/marker"
)

// DefaultPackage is the identity of the unnamed package under package grouping
const DefaultPackage = "(default)"

// Options configure a Builder
type Options struct {
	GroupBy             config.GroupBy
	IncludePlaceholders bool
	// Label maps a class name to a custom identity; used by GroupByCustomLabel
	Label func(className string) (string, bool)
}

// OptionsFrom derives builder options from a validated config
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		GroupBy:             cfg.GroupBy,
		IncludePlaceholders: cfg.IncludeUnresolvedPlaceholders,
		Label:               cfg.Labeler().Label,
	}
}

// entry is one classified class as recorded by Add
type entry struct {
	class    string
	simple   string
	pkg      string
	artifact string
	markers  []marker.Marker
	// deps are the types of instance fields and constructor parameters
	deps []string
}

// Builder accumulates classification results and freezes them into a
// Graph. Add is safe for concurrent use; Build sees every entry added
// before it was called.
type Builder struct {
	opts    Options
	mu      sync.Mutex
	entries []entry
}

// NewBuilder creates an empty builder
func NewBuilder(opts Options) *Builder {
	if opts.GroupBy == "" {
		opts.GroupBy = config.GroupByClass
	}
	return &Builder{opts: opts}
}

// Add records the markers found on one class. Classes without markers do
// not become nodes.
func (b *Builder) Add(cd *classfile.ClassDescriptor, markers []marker.Marker) {
	if len(markers) == 0 {
		return
	}
	e := entry{
		class:    cd.Name,
		simple:   cd.SimpleName(),
		pkg:      cd.Package(),
		artifact: cd.Artifact,
		markers:  slices.Clone(markers),
		deps:     injectedTypes(cd),
	}
	b.mu.Lock()
	b.entries = append(b.entries, e)
	b.mu.Unlock()
}

// Len returns the number of recorded entries
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// identity maps an entry onto its node identity and label
func (b *Builder) identity(e entry) (id, label string) {
	switch b.opts.GroupBy {
	case config.GroupByPackage:
		if e.pkg == "" {
			return DefaultPackage, DefaultPackage
		}
		return e.pkg, e.pkg
	case config.GroupByCustomLabel:
		if b.opts.Label != nil {
			if l, ok := b.opts.Label(e.class); ok && l != "" {
				return l, l
			}
		}
	}
	return e.class, e.simple
}

// end is one side of a relation: a marker and the node carrying it
type end struct {
	node   string
	marker marker.Marker
}

// buildState is the working set of one Build call
type buildState struct {
	nodes    map[string]*Node
	first    map[string]entry
	classes  map[string]string // class name -> node identity
	demand   map[EdgeKind][]end
	supply   map[EdgeKind][]end
	edges    []Edge
	seen     map[edgeKey]bool
	warnings diag.Warnings
	warned   map[string]bool
}

// Build resolves the recorded entries into a frozen Graph and the warnings
// found on the way. Entries are processed in order of class name and then
// artifact, so the result does not depend on the order of Add calls.
func (b *Builder) Build() (*Graph, diag.Warnings) {
	b.mu.Lock()
	entries := slices.Clone(b.entries)
	b.mu.Unlock()
	slices.SortStableFunc(entries, func(x, y entry) int {
		return cmp.Or(cmp.Compare(x.class, y.class), cmp.Compare(x.artifact, y.artifact))
	})

	st := &buildState{
		nodes:   make(map[string]*Node),
		first:   make(map[string]entry),
		classes: make(map[string]string),
		demand:  make(map[EdgeKind][]end),
		supply:  make(map[EdgeKind][]end),
		seen:    make(map[edgeKey]bool),
		warned:  make(map[string]bool),
	}
	for _, e := range entries {
		b.addEntry(st, e)
	}
	for _, rel := range relations {
		b.resolve(st, rel)
	}
	for _, e := range entries {
		st.dependencies(e)
	}

	nodes := make([]Node, 0, len(st.nodes))
	for _, n := range st.nodes {
		nodes = append(nodes, *n)
	}
	return freeze(nodes, st.edges), st.warnings
}

func (b *Builder) addEntry(st *buildState, e entry) {
	id, label := b.identity(e)
	roles := marker.KindsOf(e.markers)

	n, ok := st.nodes[id]
	if !ok {
		n = &Node{ID: id, Label: label, Package: e.pkg}
		st.nodes[id] = n
		st.first[id] = e
	} else if first := st.first[id]; b.opts.GroupBy != config.GroupByPackage &&
		(first.class != e.class || first.artifact != e.artifact) &&
		!slices.Equal(roles, n.Roles) {
		st.warn(diag.Duplicate(id, "%s (%s) with roles [%s] collapses onto %s (%s) with roles [%s]",
			e.class, e.artifact, joinKinds(roles), first.class, first.artifact, joinKinds(n.Roles)))
	}
	if _, ok := st.classes[e.class]; !ok {
		st.classes[e.class] = id
	}
	n.Roles = unionRoles(n.Roles, roles)
	if !slices.Contains(n.Members, e.class) {
		n.Members = append(n.Members, e.class)
	}

	for _, m := range e.markers {
		for _, rel := range relations {
			switch m.Kind {
			case demandKind[rel.kind]:
				st.demand[rel.kind] = append(st.demand[rel.kind], end{node: id, marker: m})
			case supplyKind[rel.kind]:
				st.supply[rel.kind] = append(st.supply[rel.kind], end{node: id, marker: m})
			}
		}
	}
}

// resolve connects every demand marker of a relation to each supply node
// sharing its key, or to a placeholder when there is none
func (b *Builder) resolve(st *buildState, rel relation) {
	supplies := make(map[string][]end)
	for _, s := range st.supply[rel.kind] {
		if k := rel.key(s.marker); k != marker.Unresolved {
			supplies[k] = append(supplies[k], s)
		}
	}

	for _, d := range st.demand[rel.kind] {
		key := rel.key(d.marker)
		matched := false
		if key != marker.Unresolved {
			for _, s := range supplies[key] {
				if !rel.compatible(d.marker, s.marker) {
					continue
				}
				matched = true
				st.edge(Edge{From: d.node, To: s.node, Kind: rel.kind, Label: rel.label(d.marker, &s.marker)})
			}
		}
		if matched {
			continue
		}

		name, label := marker.Unresolved, marker.Unresolved
		if key != marker.Unresolved {
			name, label = rel.external(d.marker)
		}
		st.warn(diag.Unresolved(d.node, "%s %s %q has no matching %s",
			d.marker.Kind, rel.kind, rel.label(d.marker, nil), supplyKind[rel.kind]))
		if !b.opts.IncludePlaceholders {
			continue
		}
		id := PlaceholderID(rel.kind, name)
		if _, ok := st.nodes[id]; !ok {
			st.nodes[id] = &Node{
				ID:          id,
				Label:       label,
				Roles:       []marker.Kind{supplyKind[rel.kind]},
				Placeholder: true,
			}
		}
		st.edge(Edge{From: d.node, To: id, Kind: rel.kind, Label: rel.label(d.marker, nil)})
	}
}

// dependencies links an entry to every classified component it holds as a
// field or takes in a constructor
func (st *buildState) dependencies(e entry) {
	from := st.classes[e.class]
	for _, dep := range e.deps {
		if to, ok := st.classes[dep]; ok {
			st.edge(Edge{From: from, To: to, Kind: EdgeDependency})
		}
	}
}

var primitives = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true,
}

// injectedTypes collects the distinct reference types of instance fields and
// constructor parameters, arrays reduced to their element type
func injectedTypes(cd *classfile.ClassDescriptor) []string {
	var types []string
	add := func(t string) {
		t = strings.TrimRight(t, "[]")
		if t != cd.Name && !primitives[t] && !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	for _, f := range cd.Fields {
		if !f.Access.Has(classfile.AccStatic) {
			add(f.Type)
		}
	}
	for _, m := range cd.Methods {
		if m.Name == "<init>" {
			for _, p := range m.Params {
				add(p)
			}
		}
	}
	return types
}

// edge records e unless it is a self-loop or already present
func (st *buildState) edge(e Edge) {
	if e.From == e.To || st.seen[e.key()] {
		return
	}
	st.seen[e.key()] = true
	st.edges = append(st.edges, e)
}

func (st *buildState) warn(w diag.Warning) {
	k := w.String()
	if st.warned[k] {
		return
	}
	st.warned[k] = true
	st.warnings = append(st.warnings, w)
}

func joinKinds(ks []marker.Kind) string {
	s := make([]string, len(ks))
	for i, k := range ks {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}
