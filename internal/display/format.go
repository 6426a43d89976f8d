package display

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zheng/pyflow/internal/graph"
	"github.com/zheng/pyflow/internal/reach"
	"github.com/zheng/pyflow/internal/storage"
)

// ShortLabel flattens a node label onto one line and truncates it to limit
// runes. limit <= 0 disables truncation.
// e.g., "If\nCondition: x > 0" -> "If Condition: x > 0"
func ShortLabel(label string, limit int) string {
	s := strings.Join(strings.Fields(label), " ")
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-3]) + "..."
}

// FormatNodeList renders nodes as box-drawing tree lines, IDs aligned.
func FormatNodeList(nodes []*graph.Node, indent string) string {
	if len(nodes) == 0 {
		return indent + "└── (无)\n"
	}
	width := 0
	for _, n := range nodes {
		if w := len(n.ID); w > width {
			width = w
		}
	}
	var sb strings.Builder
	for i, n := range nodes {
		prefix := "├──"
		if i == len(nodes)-1 {
			prefix = "└──"
		}
		sb.WriteString(fmt.Sprintf("%s%s %-*s  L%-4d %s\n", indent, prefix, width, n.ID, n.Line, ShortLabel(n.Label, 60)))
	}
	return sb.String()
}

// FormatReport renders a reachability report as a tree
func FormatReport(r *reach.Report) string {
	var sb strings.Builder

	sb.WriteString("📍 当前节点\n")
	sb.WriteString(fmt.Sprintf("%s  L%d  %s\n\n", r.Target.ID, r.Target.Line, ShortLabel(r.Target.Label, 0)))

	preds := append(append([]*graph.Node{}, r.DirectPredecessors...), r.IndirectPredecessors...)
	if len(preds) > 0 {
		sb.WriteString(fmt.Sprintf("⬆️ 前驱 (直接 %d 个, 共 %d 个)\n", len(r.DirectPredecessors), len(preds)))
	} else {
		sb.WriteString("⬆️ 前驱\n")
	}
	sb.WriteString(FormatNodeList(preds, ""))
	sb.WriteString("\n")

	succs := append(append([]*graph.Node{}, r.DirectSuccessors...), r.IndirectSuccessors...)
	if len(succs) > 0 {
		sb.WriteString(fmt.Sprintf("⬇️ 后继 (直接 %d 个, 共 %d 个)\n", len(r.DirectSuccessors), len(succs)))
	} else {
		sb.WriteString("⬇️ 后继\n")
	}
	sb.WriteString(FormatNodeList(succs, ""))
	return sb.String()
}

// FormatRuns renders stored runs as an aligned table.
func FormatRuns(runs []*storage.Run) string {
	if len(runs) == 0 {
		return "(没有已保存的运行记录)\n"
	}
	width := len("目标")
	for _, r := range runs {
		if w := utf8.RuneCountInString(r.Target); w > width {
			width = w
		}
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-8s  %-19s  %-*s  %5s  %6s  %6s  %s\n", "ID", "时间", width, "目标", "深度", "节点", "边", "未解析"))
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%-8s  %-19s  %-*s  %5d  %6d  %6d  %d\n",
			r.ID[:min(8, len(r.ID))],
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			width, r.Target,
			r.Depth, r.Stats.Nodes, r.Stats.Edges, r.Stats.Unresolved))
	}
	return sb.String()
}

// FormatDiagnostics lists a graph's diagnostics, one per line.
func FormatDiagnostics(diags []graph.Diagnostic) string {
	var sb strings.Builder
	for _, d := range diags {
		sb.WriteString(fmt.Sprintf("  [%s] L%d %s: %s\n", d.Kind, d.Line, d.Node, d.Message))
	}
	return sb.String()
}
