package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/zheng/pyflow/internal/graph"
)

// maxTraceDepth bounds unlimited traversals; continue edges make the
// graph cyclic.
const maxTraceDepth = 50

// Reached is a node found by a traversal and its distance in edges from
// the start node.
type Reached struct {
	Node     *graph.Node
	Distance int
}

// Stats summarizes the database.
type Stats struct {
	Runs        int64 `json:"runs"`
	Nodes       int64 `json:"nodes"`
	Edges       int64 `json:"edges"`
	Diagnostics int64 `json:"diagnostics"`
}

const nodeColumns = `id, kind, label, region, line, depth`

// GetNode returns a node of a run by its ID.
func (db *DB) GetNode(runID string, id graph.NodeID) (*graph.Node, error) {
	n, err := scanNode(db.conn.QueryRow(
		`SELECT `+nodeColumns+` FROM nodes WHERE run_id = ? AND id = ?`, runID, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s not found in run %s", id, runID)
	}
	return n, err
}

// FindNodesByLabel returns nodes of a run whose ID or label contains
// pattern (using LIKE).
// Results are sorted by match quality: exact ID > exact label line > label prefix > contains
func (db *DB) FindNodesByLabel(runID, pattern string) ([]*graph.Node, error) {
	return db.runNodes(
		`WHERE run_id = ? AND (id = ? OR label LIKE ?)
		 ORDER BY
			CASE
				WHEN id = ? THEN 0
				WHEN label = ? OR label LIKE '%' || char(10) || ? OR label LIKE ? || char(10) || '%' THEN 1
				WHEN label LIKE ? || '%' OR label LIKE '%' || char(10) || ? || '%' THEN 2
				ELSE 3
			END,
			length(label) ASC,
			seq ASC`,
		runID, pattern, "%"+pattern+"%",
		pattern,
		pattern, pattern, pattern,
		pattern, pattern,
	)
}

// Successors returns the nodes reachable from nodeID up to maxDepth edges
// away, each with its shortest distance.
// If maxDepth is 0, the traversal is bounded by maxTraceDepth only
func (db *DB) Successors(runID string, nodeID graph.NodeID, maxDepth int) ([]Reached, error) {
	return db.traverse(runID, nodeID, maxDepth, "from_id", "to_id")
}

// Predecessors returns the nodes that reach nodeID within maxDepth edges.
func (db *DB) Predecessors(runID string, nodeID graph.NodeID, maxDepth int) ([]Reached, error) {
	return db.traverse(runID, nodeID, maxDepth, "to_id", "from_id")
}

// traverse walks edges from the `near` column to the `far` column.
func (db *DB) traverse(runID string, nodeID graph.NodeID, maxDepth int, near, far string) ([]Reached, error) {
	if maxDepth <= 0 || maxDepth > maxTraceDepth {
		maxDepth = maxTraceDepth
	}
	query := `
		WITH RECURSIVE reach(id, depth) AS (
			SELECT e.` + far + `, 1
			FROM edges e
			WHERE e.run_id = ? AND e.` + near + ` = ?
			UNION
			SELECT e.` + far + `, r.depth + 1
			FROM edges e
			JOIN reach r ON e.` + near + ` = r.id
			WHERE e.run_id = ? AND r.depth < ?
		)
		SELECT n.id, n.kind, n.label, n.region, n.line, n.depth, MIN(r.depth) AS distance
		FROM reach r
		JOIN nodes n ON n.run_id = ? AND n.id = r.id
		WHERE r.id <> ?
		GROUP BY n.id
		ORDER BY distance, n.seq`

	rows, err := db.conn.Query(query, runID, string(nodeID), runID, maxDepth, runID, string(nodeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reached
	for rows.Next() {
		var n graph.Node
		var dist int
		if err := rows.Scan(&n.ID, &n.Kind, &n.Label, &n.Region, &n.Line, &n.Depth, &dist); err != nil {
			return nil, err
		}
		out = append(out, Reached{Node: &n, Distance: dist})
	}
	return out, rows.Err()
}

// GetStats returns database statistics
func (db *DB) GetStats() (*Stats, error) {
	var s Stats
	for _, q := range []struct {
		table string
		dest  *int64
	}{
		{"runs", &s.Runs},
		{"nodes", &s.Nodes},
		{"edges", &s.Edges},
		{"diagnostics", &s.Diagnostics},
	} {
		if err := db.conn.QueryRow(`SELECT COUNT(*) FROM ` + q.table).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func (db *DB) runNodes(where string, args ...interface{}) ([]*graph.Node, error) {
	rows, err := db.conn.Query(`SELECT `+nodeColumns+` FROM nodes `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

// Helper functions

func scanNode(row scanner) (*graph.Node, error) {
	var n graph.Node
	if err := row.Scan(&n.ID, &n.Kind, &n.Label, &n.Region, &n.Line, &n.Depth); err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*graph.Node, error) {
	var nodes []*graph.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
