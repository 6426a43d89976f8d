package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/graph"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// loopGraph: def → for → call → continue back to the for; the for falls
// through to a return.
func loopGraph() *graph.FlowGraph {
	g := graph.New()
	g.AddRegion(graph.Region{ID: "cluster_|2", Color: "lightgreen"})
	g.AddRegion(graph.Region{ID: "cluster_|2_body", Label: "Loop Body", Color: "darkblue", Parent: "cluster_|2"})
	g.AddNode(graph.Node{ID: "|1", Label: "FunctionDef\nname: 'f'", Kind: graph.NodeKindFunction, Line: 1})
	g.AddNode(graph.Node{ID: "|2", Label: "For\nFor: x in xs", Kind: graph.NodeKindFor, Region: "cluster_|2", Line: 2})
	g.AddNode(graph.Node{ID: "|3", Label: "Call\nwork(x)", Kind: graph.NodeKindCall, Region: "cluster_|2_body", Line: 3, Depth: 1})
	g.AddNode(graph.Node{ID: "|4", Label: "Continue", Kind: graph.NodeKindContinue, Region: "cluster_|2_body", Line: 4})
	g.AddNode(graph.Node{ID: "|5", Label: "Return", Kind: graph.NodeKindReturn, Line: 5})
	g.AddEdge(graph.Edge{From: "|1", To: "|2", Kind: graph.EdgeKindContainment, Constrained: true})
	g.AddEdge(graph.Edge{From: "|2", To: "|3", Kind: graph.EdgeKindContainment, Constrained: true})
	g.AddEdge(graph.Edge{From: "|3", To: "|4", Label: graph.LabelNextStep, Kind: graph.EdgeKindFlow, Constrained: true})
	g.AddEdge(graph.Edge{From: "|4", To: "|2", Label: graph.LabelContinue, Kind: graph.EdgeKindJump})
	g.AddEdge(graph.Edge{From: "|2", To: "|5", Label: graph.LabelNextStep, Kind: graph.EdgeKindFlow, Constrained: true})
	g.AddDiagnostic(graph.Diagnostic{Kind: graph.DiagUnresolved, Node: "|3", Line: 3, Message: "cannot resolve work"})
	g.Stats.Expansions = 1
	g.Entry = "|1"
	return g
}

func TestSaveAndLoadGraph(t *testing.T) {
	db := openTestDB(t)
	orig := loopGraph()

	id, err := db.SaveRun(orig, RunMeta{Target: "app.py:f", Depth: 2, Fingerprint: "abc"})
	require.NoError(t, err)
	require.Len(t, id, 36)

	g, err := db.LoadGraph(id)
	require.NoError(t, err)
	assert.Equal(t, orig.Entry, g.Entry)
	assert.Equal(t, orig.Stats, g.Stats)
	require.Len(t, g.Nodes, len(orig.Nodes))
	for i := range orig.Nodes {
		assert.Equal(t, *orig.Nodes[i], *g.Nodes[i])
	}
	require.Len(t, g.Edges, len(orig.Edges))
	for i := range orig.Edges {
		assert.Equal(t, *orig.Edges[i], *g.Edges[i])
	}
	require.Len(t, g.Regions, 2)
	assert.Equal(t, *orig.Regions[1], *g.Regions[1])
	assert.Equal(t, orig.Diagnostics, g.Diagnostics)

	run, err := db.GetRun(id[:8])
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "app.py:f", run.Target)
	assert.Equal(t, "abc", run.Fingerprint)
	assert.Equal(t, 5, run.Stats.Nodes)
}

func TestRuns(t *testing.T) {
	db := openTestDB(t)
	first, err := db.SaveRun(loopGraph(), RunMeta{Target: "app.py:f"})
	require.NoError(t, err)
	second, err := db.SaveRun(loopGraph(), RunMeta{Target: "app.py:f"})
	require.NoError(t, err)
	_, err = db.SaveRun(loopGraph(), RunMeta{Target: "pkg.mod:g"})
	require.NoError(t, err)

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	limited, err := db.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	latest, err := db.LatestRunFor("app.py:f")
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)

	_, err = db.LatestRunFor("missing:f")
	assert.ErrorIs(t, err, ErrRunNotFound)

	require.NoError(t, db.DeleteRun(first))
	_, err = db.GetRun(first)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.DeleteRun(first), ErrRunNotFound)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Runs)
	assert.Equal(t, int64(10), stats.Nodes)
	assert.Equal(t, int64(10), stats.Edges)
	assert.Equal(t, int64(2), stats.Diagnostics)

	require.NoError(t, db.Clear())
	stats, err = db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, *stats)
}

func TestFindNodesByLabel(t *testing.T) {
	db := openTestDB(t)
	id, err := db.SaveRun(loopGraph(), RunMeta{Target: "app.py:f"})
	require.NoError(t, err)

	tests := []struct {
		pattern string
		want    []graph.NodeID
	}{
		{pattern: "|3", want: []graph.NodeID{"|3"}},
		{pattern: "work(x)", want: []graph.NodeID{"|3"}},
		{pattern: "Continue", want: []graph.NodeID{"|4"}},
		{pattern: "o", want: []graph.NodeID{"|4", "|3", "|2", "|1"}},
		{pattern: "nothing", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			nodes, err := db.FindNodesByLabel(id, tt.pattern)
			require.NoError(t, err)
			var got []graph.NodeID
			for _, n := range nodes {
				got = append(got, n.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTraversal(t *testing.T) {
	db := openTestDB(t)
	id, err := db.SaveRun(loopGraph(), RunMeta{Target: "app.py:f"})
	require.NoError(t, err)

	distances := func(rs []Reached) map[graph.NodeID]int {
		out := make(map[graph.NodeID]int)
		for _, r := range rs {
			out[r.Node.ID] = r.Distance
		}
		return out
	}

	succ, err := db.Successors(id, "|2", 0)
	require.NoError(t, err)
	assert.Equal(t, map[graph.NodeID]int{"|3": 1, "|5": 1, "|4": 2}, distances(succ))

	direct, err := db.Successors(id, "|2", 1)
	require.NoError(t, err)
	assert.Equal(t, map[graph.NodeID]int{"|3": 1, "|5": 1}, distances(direct))

	pred, err := db.Predecessors(id, "|3", 0)
	require.NoError(t, err)
	assert.Equal(t, map[graph.NodeID]int{"|2": 1, "|1": 2, "|4": 2}, distances(pred))

	n, err := db.GetNode(id, "|4")
	require.NoError(t, err)
	assert.Equal(t, "Continue", n.Label)

	_, err = db.GetNode(id, "|99")
	assert.Error(t, err)
}
