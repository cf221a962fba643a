package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zheng/connviz/internal/diag"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/marker"
)

const nodeColumns = `id, label, package, roles, members, placeholder`

// meta keys written by SaveGraph
const (
	MetaSavedAt = "saved_at"
	MetaRunID   = "run_id"
)

// SaveGraph replaces the stored graph with g and its warnings in one transaction
func (db *DB) SaveGraph(g *graph.Graph, warnings diag.Warnings) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := clearAll(tx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for _, n := range g.Nodes() {
		if err := insertNode(tx, &n); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}
	for _, e := range g.Edges() {
		if err := insertEdge(tx, &e); err != nil {
			return fmt.Errorf("insert edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	for _, w := range warnings {
		if _, err := tx.Exec(
			`INSERT INTO warnings (severity, kind, subject, message) VALUES (?, ?, ?, ?)`,
			w.Severity, w.Kind, w.Subject, w.Message,
		); err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
	}
	if err := setMeta(tx, MetaSavedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := setMeta(tx, MetaRunID, uuid.NewString()); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadGraph rebuilds the stored graph. The stored rows are validated again
// by graph.New.
func (db *DB) LoadGraph() (*graph.Graph, diag.Warnings, error) {
	nodes, err := db.GetAllNodes()
	if err != nil {
		return nil, nil, err
	}
	edges, err := db.GetAllEdges()
	if err != nil {
		return nil, nil, err
	}
	warnings, err := db.GetWarnings("")
	if err != nil {
		return nil, nil, err
	}

	ns := make([]graph.Node, len(nodes))
	for i, n := range nodes {
		ns[i] = *n
	}
	es := make([]graph.Edge, len(edges))
	for i, e := range edges {
		es[i] = *e
	}
	g, err := graph.New(ns, es)
	if err != nil {
		return nil, nil, fmt.Errorf("stored graph: %w", err)
	}
	return g, warnings, nil
}

// InsertNode inserts a node into the database
func (db *DB) InsertNode(node *graph.Node) error {
	return insertNode(db.conn, node)
}

func insertNode(ex execer, node *graph.Node) error {
	_, err := ex.Exec(
		`INSERT INTO nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		node.ID, node.Label, node.Package, joinRoles(node.Roles), strings.Join(node.Members, ","), node.Placeholder,
	)
	return err
}

// InsertEdge inserts an edge into the database; duplicates are ignored
func (db *DB) InsertEdge(edge *graph.Edge) error {
	return insertEdge(db.conn, edge)
}

func insertEdge(ex execer, edge *graph.Edge) error {
	_, err := ex.Exec(
		`INSERT OR IGNORE INTO edges (from_id, to_id, kind, label) VALUES (?, ?, ?, ?)`,
		edge.From, edge.To, edge.Kind, edge.Label,
	)
	return err
}

func setMeta(ex execer, key, value string) error {
	_, err := ex.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetMeta returns a meta value, or "" when unset
func (db *DB) GetMeta(key string) (string, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// GetNodeByID returns a node by its identity
func (db *DB) GetNodeByID(id string) (*graph.Node, error) {
	row := db.conn.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

// FindNodesByPattern returns nodes whose identity or label matches a
// pattern (using LIKE). Results are sorted by match quality: exact label
// match > identity ends with pattern > contains pattern.
func (db *DB) FindNodesByPattern(pattern string) ([]*graph.Node, error) {
	rows, err := db.conn.Query(
		`SELECT `+nodeColumns+` FROM nodes
		 WHERE id LIKE ? OR label LIKE ?
		 ORDER BY
			CASE
				WHEN label = ? OR id = ? THEN 0
				WHEN id LIKE '%' || ? THEN 1
				ELSE 2
			END,
			length(id) ASC, id ASC`,
		"%"+pattern+"%", "%"+pattern+"%", pattern, pattern, pattern,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

// kindFilter renders an optional "AND e.kind IN (...)" clause
func kindFilter(kinds []graph.EdgeKind) (string, []any) {
	if len(kinds) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(kinds))
	args := make([]any, len(kinds))
	for i, k := range kinds {
		placeholders[i] = "?"
		args[i] = string(k)
	}
	return ` AND e.kind IN (` + strings.Join(placeholders, ",") + `)`, args
}

// GetDirectUpstream returns the nodes with an edge into the given node
func (db *DB) GetDirectUpstream(id string, kinds ...graph.EdgeKind) ([]*graph.Node, error) {
	filter, args := kindFilter(kinds)
	rows, err := db.conn.Query(
		`SELECT DISTINCT n.id, n.label, n.package, n.roles, n.members, n.placeholder
		 FROM nodes n
		 JOIN edges e ON e.from_id = n.id
		 WHERE e.to_id = ?`+filter+` ORDER BY n.id`,
		append([]any{id}, args...)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetDirectDownstream returns the nodes the given node has an edge to
func (db *DB) GetDirectDownstream(id string, kinds ...graph.EdgeKind) ([]*graph.Node, error) {
	filter, args := kindFilter(kinds)
	rows, err := db.conn.Query(
		`SELECT DISTINCT n.id, n.label, n.package, n.roles, n.members, n.placeholder
		 FROM nodes n
		 JOIN edges e ON e.to_id = n.id
		 WHERE e.from_id = ?`+filter+` ORDER BY n.id`,
		append([]any{id}, args...)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetUpstream returns all nodes that reach the given node, up to maxDepth
// hops. If maxDepth is 0, there is no depth limit.
func (db *DB) GetUpstream(id string, maxDepth int) ([]*graph.Node, error) {
	return db.reachable(id, maxDepth, "from_id", "to_id")
}

// GetDownstream returns all nodes reachable from the given node, up to
// maxDepth hops. If maxDepth is 0, there is no depth limit.
func (db *DB) GetDownstream(id string, maxDepth int) ([]*graph.Node, error) {
	return db.reachable(id, maxDepth, "to_id", "from_id")
}

// reachable walks edges with a recursive CTE; near is the column of the
// visited neighbor and far the column matching the current node. Without a
// depth limit only identities are tracked, so cycles terminate.
func (db *DB) reachable(id string, maxDepth int, near, far string) ([]*graph.Node, error) {
	var cte string
	args := []any{id}
	if maxDepth > 0 {
		cte = `
		WITH RECURSIVE reach(id, depth) AS (
			SELECT e.` + near + `, 1 FROM edges e WHERE e.` + far + ` = ?
			UNION
			SELECT e.` + near + `, r.depth + 1
			FROM edges e
			JOIN reach r ON e.` + far + ` = r.id
			WHERE r.depth < ?
		)`
		args = append(args, maxDepth)
	} else {
		cte = `
		WITH RECURSIVE reach(id) AS (
			SELECT e.` + near + ` FROM edges e WHERE e.` + far + ` = ?
			UNION
			SELECT e.` + near + `
			FROM edges e
			JOIN reach r ON e.` + far + ` = r.id
		)`
	}
	query := cte + `
		SELECT ` + nodeColumns + ` FROM nodes
		WHERE id IN (SELECT id FROM reach) AND id != ?
		ORDER BY id`
	args = append(args, id)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetAllNodes returns all nodes
func (db *DB) GetAllNodes() ([]*graph.Node, error) {
	rows, err := db.conn.Query(`SELECT ` + nodeColumns + ` FROM nodes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetNodesByPackage returns all nodes in the specified packages
func (db *DB) GetNodesByPackage(packages []string) ([]*graph.Node, error) {
	if len(packages) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(packages))
	args := make([]any, len(packages))
	for i, pkg := range packages {
		placeholders[i] = "?"
		args[i] = pkg
	}
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE package IN (` + strings.Join(placeholders, ",") + `) ORDER BY id`
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetNodesByRole returns nodes carrying a marker kind
func (db *DB) GetNodesByRole(role marker.Kind) ([]*graph.Node, error) {
	rows, err := db.conn.Query(
		`SELECT `+nodeColumns+` FROM nodes WHERE ',' || roles || ',' LIKE ? ORDER BY id`,
		"%,"+string(role)+",%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

// GetAllEdges returns all edges in the database
func (db *DB) GetAllEdges() ([]*graph.Edge, error) {
	return db.queryEdges(`SELECT from_id, to_id, kind, label FROM edges ORDER BY from_id, to_id, kind, label`)
}

// GetEdgesByKind returns the edges of one kind
func (db *DB) GetEdgesByKind(kind graph.EdgeKind) ([]*graph.Edge, error) {
	return db.queryEdges(`SELECT from_id, to_id, kind, label FROM edges WHERE kind = ? ORDER BY from_id, to_id, label`, kind)
}

// GetEdgesForNode returns the edges touching a node in either direction
func (db *DB) GetEdgesForNode(id string) ([]*graph.Edge, error) {
	return db.queryEdges(`SELECT from_id, to_id, kind, label FROM edges
		WHERE from_id = ? OR to_id = ? ORDER BY from_id, to_id, kind, label`, id, id)
}

func (db *DB) queryEdges(query string, args ...any) ([]*graph.Edge, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []*graph.Edge
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.From, &e.To, &e.Kind, &e.Label); err != nil {
			return nil, err
		}
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

// GetWarnings returns stored warnings, optionally of one kind
func (db *DB) GetWarnings(kind diag.Kind) (diag.Warnings, error) {
	query := `SELECT severity, kind, subject, message FROM warnings`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	rows, err := db.conn.Query(query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out diag.Warnings
	for rows.Next() {
		var w diag.Warning
		if err := rows.Scan(&w.Severity, &w.Kind, &w.Subject, &w.Message); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetStats returns database statistics
func (db *DB) GetStats() (nodeCount, edgeCount int64, err error) {
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&nodeCount)
	if err != nil {
		return
	}
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&edgeCount)
	return
}

// TreeNode is a node in an upstream or downstream tree, with the edge
// that led to it
type TreeNode struct {
	Node     *graph.Node
	Edge     *graph.Edge
	Children []*TreeNode
}

// GetUpstreamTree builds a tree of upstream nodes, maxDepth levels deep.
// Nodes already on the current path are not expanded again.
func (db *DB) GetUpstreamTree(id string, maxDepth int) ([]*TreeNode, error) {
	return db.tree(id, maxDepth, true, map[string]bool{id: true})
}

// GetDownstreamTree builds a tree of downstream nodes, maxDepth levels deep
func (db *DB) GetDownstreamTree(id string, maxDepth int) ([]*TreeNode, error) {
	return db.tree(id, maxDepth, false, map[string]bool{id: true})
}

func (db *DB) tree(id string, maxDepth int, upstream bool, path map[string]bool) ([]*TreeNode, error) {
	if maxDepth <= 0 {
		return nil, nil
	}
	edges, err := db.GetEdgesForNode(id)
	if err != nil {
		return nil, err
	}

	var result []*TreeNode
	for _, e := range edges {
		other := e.To
		if upstream {
			other = e.From
		}
		if (upstream && e.To != id) || (!upstream && e.From != id) {
			continue
		}
		n, err := db.GetNodeByID(other)
		if err != nil {
			return nil, err
		}
		tn := &TreeNode{Node: n, Edge: e}
		if !path[other] {
			path[other] = true
			tn.Children, err = db.tree(other, maxDepth-1, upstream, path)
			delete(path, other)
			if err != nil {
				return nil, err
			}
		}
		result = append(result, tn)
	}
	return result, nil
}

// Helper functions

func joinRoles(roles []marker.Kind) string {
	s := make([]string, len(roles))
	for i, r := range roles {
		s[i] = string(r)
	}
	return strings.Join(s, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInto(s scanner) (*graph.Node, error) {
	var n graph.Node
	var roles, members string
	if err := s.Scan(&n.ID, &n.Label, &n.Package, &roles, &members, &n.Placeholder); err != nil {
		return nil, err
	}
	for _, r := range splitList(roles) {
		n.Roles = append(n.Roles, marker.Kind(r))
	}
	n.Members = splitList(members)
	return &n, nil
}

func scanNode(row *sql.Row) (*graph.Node, error) {
	return scanInto(row)
}

func scanNodes(rows *sql.Rows) ([]*graph.Node, error) {
	var nodes []*graph.Node
	for rows.Next() {
		n, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
