package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/graph"
)

// sampleGraph is a def containing a loop whose body breaks out.
func sampleGraph() *graph.FlowGraph {
	g := graph.New()
	g.AddRegion(graph.Region{ID: "cluster_|3", Color: "lightgreen"})
	g.AddRegion(graph.Region{ID: "cluster_|3_body", Label: "Loop Body", Color: "darkblue", Parent: "cluster_|3"})
	g.AddNode(graph.Node{ID: "|1", Label: "FunctionDef\nname: 'f'", Kind: graph.NodeKindFunction, Line: 1})
	g.AddNode(graph.Node{ID: "|3", Label: "For\nFor: x in xs", Kind: graph.NodeKindFor, Region: "cluster_|3", Line: 2})
	g.AddNode(graph.Node{ID: "|5", Label: `Call` + "\n" + `print("hi")`, Kind: graph.NodeKindCall, Region: "cluster_|3_body", Line: 3})
	g.AddNode(graph.Node{ID: "|7", Label: "Break", Kind: graph.NodeKindBreak, Region: "cluster_|3_body", Line: 4})
	g.AddNode(graph.Node{ID: "|9", Label: "Return", Kind: graph.NodeKindReturn, Line: 5})
	g.AddEdge(graph.Edge{From: "|1", To: "|3", Kind: graph.EdgeKindContainment, Constrained: true})
	g.AddEdge(graph.Edge{From: "|3", To: "|5", Kind: graph.EdgeKindContainment, Constrained: true})
	g.AddEdge(graph.Edge{From: "|5", To: "|7", Label: graph.LabelNextStep, Kind: graph.EdgeKindFlow, Constrained: true})
	g.AddEdge(graph.Edge{From: "|7", To: "|9", Label: graph.LabelBreak, Kind: graph.EdgeKindJump})
	g.Entry = "|1"
	return g
}

func TestExport_DOT(t *testing.T) {
	var buf bytes.Buffer
	err := NewExporter(nil).Export(&buf, sampleGraph(), ExportOptions{Format: FormatDOT})
	require.NoError(t, err)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, `digraph "flow" {`))
	assert.Contains(t, out, `label="FunctionDef name: 'f'"`)
	assert.Contains(t, out, "rankdir=TB")
	assert.Contains(t, out, `subgraph "cluster_|3" {`)
	assert.Contains(t, out, `color="darkblue";`)
	assert.Contains(t, out, "penwidth=2;")
	assert.Contains(t, out, "style=solid;")
	assert.NotContains(t, out, "style=filled")
	assert.Contains(t, out, `"|5" [label="Call\nprint(\"hi\")"];`)
	assert.Contains(t, out, `"|7" -> "|9" [label="Break→", style=dashed, constraint=false];`)
	assert.Contains(t, out, `"|5" -> "|7" [label="Next_Step"];`)

	// The body cluster is nested inside the loop cluster.
	outer := strings.Index(out, `subgraph "cluster_|3" {`)
	inner := strings.Index(out, `subgraph "cluster_|3_body" {`)
	require.True(t, outer >= 0 && inner > outer)
	assert.Less(t, strings.Index(out, `subgraph "cluster_|3_body"`), strings.LastIndex(out[:strings.Index(out, "->")], "}"))
}

func TestExport_Mermaid(t *testing.T) {
	var buf bytes.Buffer
	opts := ExportOptions{Format: FormatMermaid, Direction: "LR", Title: "demo"}
	require.NoError(t, NewExporter(nil).Export(&buf, sampleGraph(), opts))
	out := buf.String()

	assert.Contains(t, out, "title: demo")
	assert.Contains(t, out, "flowchart LR")
	assert.Contains(t, out, `subgraph cluster__3_body ["Loop Body"]`)
	assert.Contains(t, out, `n_5["Call<br/>print(#quot;hi#quot;)"]`)
	assert.Contains(t, out, `n_7 -.->|"Break→"| n_9`)
	assert.Contains(t, out, `n_1 --> n_3`)
	assert.Contains(t, out, "style cluster__3_body fill:none,stroke:darkblue,stroke-width:2px")
}

func TestExport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).Export(&buf, sampleGraph(), ExportOptions{Format: FormatJSON}))

	var decoded struct {
		Entry string `json:"entry"`
		Nodes []struct {
			ID     string `json:"id"`
			Region string `json:"region"`
		} `json:"nodes"`
		Edges []struct {
			Kind        string `json:"kind"`
			Constrained bool   `json:"constrained"`
		} `json:"edges"`
		Stats graph.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "|1", decoded.Entry)
	assert.Len(t, decoded.Nodes, 5)
	assert.Len(t, decoded.Edges, 4)
	assert.Equal(t, 2, decoded.Stats.Regions)
	assert.False(t, decoded.Edges[3].Constrained)
}

func TestExport_Outline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).Export(&buf, sampleGraph(), ExportOptions{Format: FormatOutline}))
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "FunctionDef name: 'f'", lines[0])
	assert.Contains(t, out, "[cluster_|3_body] Loop Body")
	assert.Contains(t, out, "Break  |7")
	assert.Contains(t, out, "Return  |9")
}

func TestExport_UnknownFormat(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{name: "unknown", format: "gif"},
		{name: "image needs a file", format: FormatPNG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewExporter(nil).Export(&bytes.Buffer{}, sampleGraph(), ExportOptions{Format: tt.format})
			assert.ErrorIs(t, err, ErrUnknownFormat)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" Mermaid ")
	require.NoError(t, err)
	assert.Equal(t, FormatMermaid, f)

	_, err = ParseFormat("bmp")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRenderFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	e := NewExporter(nil)

	t.Run("format from extension", func(t *testing.T) {
		path := filepath.Join(dir, "out", "f.mmd")
		require.NoError(t, e.RenderFile(ctx, sampleGraph(), path, ExportOptions{}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "flowchart TB")
	})

	t.Run("explicit format wins", func(t *testing.T) {
		path := filepath.Join(dir, "graph.out")
		require.NoError(t, e.RenderFile(ctx, sampleGraph(), path, ExportOptions{Format: FormatDOT}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "digraph"))
	})

	t.Run("unknown extension", func(t *testing.T) {
		err := e.RenderFile(ctx, sampleGraph(), filepath.Join(dir, "f.bmp"), ExportOptions{})
		var renderErr *RenderError
		require.True(t, errors.As(err, &renderErr))
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("missing graphviz", func(t *testing.T) {
		path := filepath.Join(dir, "f.svg")
		err := e.RenderFile(ctx, sampleGraph(), path, ExportOptions{DotBinary: filepath.Join(dir, "no-such-dot")})
		var renderErr *RenderError
		require.True(t, errors.As(err, &renderErr))
		assert.Equal(t, FormatSVG, renderErr.Format)
		assert.Equal(t, path, renderErr.Path)
	})
}
