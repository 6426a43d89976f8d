package reach

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/graph"
	"github.com/zheng/pyflow/internal/storage"
)

// chain stores f → if → (a | b) → return, with two Call boxes.
func chain(t *testing.T) (*Analyzer, string) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "reach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	g := graph.New()
	g.AddNode(graph.Node{ID: "|1", Label: "FunctionDef\nname: 'f'", Kind: graph.NodeKindFunction, Line: 1})
	g.AddNode(graph.Node{ID: "|2", Label: "If\nCondition: x > 0", Kind: graph.NodeKindIf, Line: 2})
	g.AddNode(graph.Node{ID: "|3", Label: "Call\na()", Kind: graph.NodeKindCall, Line: 3})
	g.AddNode(graph.Node{ID: "|4", Label: "Call\nb()", Kind: graph.NodeKindCall, Line: 5})
	g.AddNode(graph.Node{ID: "|5", Label: "Return", Kind: graph.NodeKindReturn, Line: 6})
	g.AddEdge(graph.Edge{From: "|1", To: "|2", Kind: graph.EdgeKindContainment, Constrained: true})
	g.AddEdge(graph.Edge{From: "|2", To: "|3", Label: graph.LabelTrue, Kind: graph.EdgeKindBranch, Constrained: true})
	g.AddEdge(graph.Edge{From: "|2", To: "|4", Label: graph.LabelFalse, Kind: graph.EdgeKindBranch, Constrained: true})
	g.AddEdge(graph.Edge{From: "|3", To: "|5", Label: graph.LabelNextStep, Kind: graph.EdgeKindFlow, Constrained: true})
	g.AddEdge(graph.Edge{From: "|4", To: "|5", Label: graph.LabelNextStep, Kind: graph.EdgeKindFlow, Constrained: true})
	g.Entry = "|1"

	id, err := db.SaveRun(g, storage.RunMeta{Target: "app.py:f", Depth: 2})
	require.NoError(t, err)
	return NewAnalyzer(db), id
}

func ids(nodes []*graph.Node) []graph.NodeID {
	var out []graph.NodeID
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestAnalyze(t *testing.T) {
	a, run := chain(t)

	tests := []struct {
		name         string
		node         string
		up, down     int
		wantDirectUp []graph.NodeID
		wantIndUp    []graph.NodeID
		wantDirectDn []graph.NodeID
		wantIndDn    []graph.NodeID
	}{
		{
			name:         "by id, unlimited",
			node:         "|2",
			wantDirectUp: []graph.NodeID{"|1"},
			wantDirectDn: []graph.NodeID{"|3", "|4"},
			wantIndDn:    []graph.NodeID{"|5"},
		},
		{
			name:         "by label",
			node:         "Return",
			wantDirectUp: []graph.NodeID{"|3", "|4"},
			wantIndUp:    []graph.NodeID{"|2", "|1"},
		},
		{
			name:         "direct only",
			node:         "a()",
			up:           1,
			down:         1,
			wantDirectUp: []graph.NodeID{"|2"},
			wantDirectDn: []graph.NodeID{"|5"},
		},
		{
			name:         "upstream skipped",
			node:         "|1",
			up:           -1,
			wantDirectDn: []graph.NodeID{"|2"},
			wantIndDn:    []graph.NodeID{"|3", "|4", "|5"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := a.Analyze(run[:8], tt.node, tt.up, tt.down)
			require.NoError(t, err)
			assert.Equal(t, run, r.RunID)
			assert.Equal(t, tt.wantDirectUp, ids(r.DirectPredecessors))
			assert.Equal(t, tt.wantIndUp, ids(r.IndirectPredecessors))
			assert.Equal(t, tt.wantDirectDn, ids(r.DirectSuccessors))
			assert.Equal(t, tt.wantIndDn, ids(r.IndirectSuccessors))
		})
	}
}

func TestAnalyze_Errors(t *testing.T) {
	a, run := chain(t)

	_, err := a.Analyze(run, "Call", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous node pattern, found 2 matches")
	assert.Contains(t, err.Error(), "|3 (Call a())")

	_, err = a.Analyze(run, "yield", 0, 0)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = a.Analyze("nope", "|1", 0, 0)
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestReport_FormatMarkdown(t *testing.T) {
	a, run := chain(t)
	r, err := a.Analyze(run, "|2", 0, 0)
	require.NoError(t, err)

	md := r.FormatMarkdown()
	assert.Contains(t, md, "## 可达性分析: If Condition: x > 0")
	assert.Contains(t, md, "| `|3` | Call | 3 | Call a() |")
	assert.Contains(t, md, "### 间接后继")
	assert.NotContains(t, md, "### 间接前驱")
	assert.Equal(t, "Target: |2, Direct Predecessors: 1, Indirect Predecessors: 0, Direct Successors: 2, Indirect Successors: 1", r.Summary())
}
