package display

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zheng/pyflow/internal/graph"
	"github.com/zheng/pyflow/internal/reach"
	"github.com/zheng/pyflow/internal/storage"
)

func TestShortLabel(t *testing.T) {
	tests := []struct {
		label string
		limit int
		want  string
	}{
		{"If\nCondition: x > 0", 0, "If Condition: x > 0"},
		{"Call\nprocess(items)", 10, "Call pr..."},
		{"Return", 10, "Return"},
		{"Call\n处理数据(x)", 8, "Call ..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortLabel(tt.label, tt.limit))
		})
	}
}

func TestFormatNodeList(t *testing.T) {
	out := FormatNodeList([]*graph.Node{
		{ID: "|2", Label: "If\nCondition: x", Line: 2},
		{ID: "|12|40", Label: "Return", Line: 9},
	}, "  ")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, []string{
		"  ├── |2      L2    If Condition: x",
		"  └── |12|40  L9    Return",
	}, lines)

	assert.Equal(t, "└── (无)\n", FormatNodeList(nil, ""))
}

func TestFormatReport(t *testing.T) {
	r := &reach.Report{
		Target:             &graph.Node{ID: "|2", Label: "If\nCondition: x", Line: 2},
		DirectPredecessors: []*graph.Node{{ID: "|1", Label: "FunctionDef\nname: 'f'", Line: 1}},
		DirectSuccessors:   []*graph.Node{{ID: "|3", Label: "Call\na()", Line: 3}},
		IndirectSuccessors: []*graph.Node{{ID: "|5", Label: "Return", Line: 6}},
	}
	out := FormatReport(r)
	assert.Contains(t, out, "|2  L2  If Condition: x")
	assert.Contains(t, out, "⬆️ 前驱 (直接 1 个, 共 1 个)")
	assert.Contains(t, out, "⬇️ 后继 (直接 1 个, 共 2 个)")
	assert.Contains(t, out, "└── |5  L6    Return")
}

func TestFormatRuns(t *testing.T) {
	assert.Equal(t, "(没有已保存的运行记录)\n", FormatRuns(nil))

	out := FormatRuns([]*storage.Run{{
		ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		Target:    "app.py:main",
		Depth:     2,
		CreatedAt: time.Now(),
		Stats:     graph.Stats{Nodes: 14, Edges: 13, Unresolved: 1},
	}})
	assert.Contains(t, out, "0f8fad5b  ")
	assert.Contains(t, out, "app.py:main")
	assert.NotContains(t, out, "d9cb")
}

func TestFormatDiagnostics(t *testing.T) {
	out := FormatDiagnostics([]graph.Diagnostic{{Kind: graph.DiagUnresolved, Node: "|7", Line: 4, Message: "cannot resolve x"}})
	assert.Equal(t, "  [unresolved] L4 |7: cannot resolve x\n", out)
}
