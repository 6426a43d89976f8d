package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zheng/pyflow/internal/graph"
)

// RunMeta describes how a graph was produced.
type RunMeta struct {
	Target      string // file.py:qualname 或 module:qualname
	Depth       int
	Fingerprint string // 源文件指纹 (xxh3)
}

// Run is a stored build.
type Run struct {
	ID          string      `json:"id"`
	Target      string      `json:"target"`
	Entry       string      `json:"entry"`
	Depth       int         `json:"depth"`
	Fingerprint string      `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
	Stats       graph.Stats `json:"stats"`
}

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, target, entry, depth, fingerprint, created_at,
	nodes, edges, regions, expansions, unresolved, unsupported, stopped, max_depth`

// SaveRun stores g as a new run and returns its ID.
func (db *DB) SaveRun(g *graph.FlowGraph, meta RunMeta) (string, error) {
	id := uuid.NewString()
	tx, err := db.conn.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	s := g.Stats
	_, err = tx.Exec(
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, meta.Target, string(g.Entry), meta.Depth, meta.Fingerprint,
		time.Now().UTC().Format(timeLayout),
		s.Nodes, s.Edges, s.Regions, s.Expansions, s.Unresolved, s.Unsupported, s.Stopped, s.MaxDepth,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	regionStmt, err := tx.Prepare(`INSERT INTO regions (run_id, id, seq, label, color, parent) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer regionStmt.Close()
	for i, r := range g.Regions {
		if _, err := regionStmt.Exec(id, r.ID, i, r.Label, r.Color, r.Parent); err != nil {
			return "", fmt.Errorf("insert region %s: %w", r.ID, err)
		}
	}

	nodeStmt, err := tx.Prepare(`INSERT INTO nodes (run_id, id, seq, kind, label, region, line, depth) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer nodeStmt.Close()
	for i, n := range g.Nodes {
		if _, err := nodeStmt.Exec(id, string(n.ID), i, string(n.Kind), n.Label, n.Region, n.Line, n.Depth); err != nil {
			return "", fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.Prepare(`INSERT INTO edges (run_id, seq, from_id, to_id, label, kind, constrained) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer edgeStmt.Close()
	for i, e := range g.Edges {
		if _, err := edgeStmt.Exec(id, i, string(e.From), string(e.To), e.Label, string(e.Kind), e.Constrained); err != nil {
			return "", fmt.Errorf("insert edge %s->%s: %w", e.From, e.To, err)
		}
	}

	diagStmt, err := tx.Prepare(`INSERT INTO diagnostics (run_id, seq, kind, node_id, line, message) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer diagStmt.Close()
	for i, d := range g.Diagnostics {
		if _, err := diagStmt.Exec(id, i, string(d.Kind), string(d.Node), d.Line, d.Message); err != nil {
			return "", fmt.Errorf("insert diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns stored runs, newest first. limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID. A unique ID prefix is
// accepted as well.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}

	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
}

// LatestRunFor returns the newest run of target.
func (db *DB) LatestRunFor(target string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(
		`SELECT `+runColumns+` FROM runs WHERE target = ? ORDER BY created_at DESC LIMIT 1`, target))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no run for %s", ErrRunNotFound, target)
	}
	return r, err
}

// DeleteRun removes a run and everything stored under it.
func (db *DB) DeleteRun(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range tables[:len(tables)-1] {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			return err
		}
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return tx.Commit()
}

// LoadGraph rebuilds the flow graph of a stored run.
func (db *DB) LoadGraph(runID string) (*graph.FlowGraph, error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	g.Entry = graph.NodeID(run.Entry)

	rows, err := db.conn.Query(`SELECT id, label, color, parent FROM regions WHERE run_id = ? ORDER BY seq`, run.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var r graph.Region
		if err := rows.Scan(&r.ID, &r.Label, &r.Color, &r.Parent); err != nil {
			rows.Close()
			return nil, err
		}
		// Membership is rebuilt as nodes are added.
		g.AddRegion(r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	nodes, err := db.runNodes(`WHERE run_id = ? ORDER BY seq`, run.ID)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		g.AddNode(*n)
	}

	rows, err = db.conn.Query(`SELECT from_id, to_id, label, kind, constrained FROM edges WHERE run_id = ? ORDER BY seq`, run.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.From, &e.To, &e.Label, &e.Kind, &e.Constrained); err != nil {
			rows.Close()
			return nil, err
		}
		g.AddEdge(e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.conn.Query(`SELECT kind, node_id, line, message FROM diagnostics WHERE run_id = ? ORDER BY seq`, run.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d graph.Diagnostic
		if err := rows.Scan(&d.Kind, &d.Node, &d.Line, &d.Message); err != nil {
			return nil, err
		}
		g.AddDiagnostic(d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	g.Stats.Expansions = run.Stats.Expansions
	return g, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var created string
	err := row.Scan(&r.ID, &r.Target, &r.Entry, &r.Depth, &r.Fingerprint, &created,
		&r.Stats.Nodes, &r.Stats.Edges, &r.Stats.Regions, &r.Stats.Expansions,
		&r.Stats.Unresolved, &r.Stats.Unsupported, &r.Stats.Stopped, &r.Stats.MaxDepth)
	if err != nil {
		return nil, err
	}
	r.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad timestamp %q: %w", r.ID, created, err)
	}
	return &r, nil
}
