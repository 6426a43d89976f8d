// Package reach answers "what can run before / after this box" over a
// stored flow graph.
package reach

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zheng/pyflow/internal/graph"
	"github.com/zheng/pyflow/internal/storage"
)

// ErrNodeNotFound is returned when neither an ID nor a label matches.
var ErrNodeNotFound = errors.New("node not found")

// Analyzer performs reachability analysis on stored runs
type Analyzer struct {
	db *storage.DB
}

// NewAnalyzer creates a new reachability analyzer
func NewAnalyzer(db *storage.DB) *Analyzer {
	return &Analyzer{db: db}
}

// Report lists the boxes around a target node
type Report struct {
	RunID                string        `json:"run_id"`
	Target               *graph.Node   `json:"target"`
	DirectPredecessors   []*graph.Node `json:"direct_predecessors"`
	IndirectPredecessors []*graph.Node `json:"indirect_predecessors"`
	DirectSuccessors     []*graph.Node `json:"direct_successors"`
	IndirectSuccessors   []*graph.Node `json:"indirect_successors"`
}

// Analyze finds the node of run runID named by node (a node ID or a label
// pattern) and collects what reaches it and what it reaches. A depth of 1
// stops at direct neighbours, 0 walks as far as the graph goes and a
// negative depth skips that direction.
func (a *Analyzer) Analyze(runID, node string, upDepth, downDepth int) (*Report, error) {
	run, err := a.db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	target, err := a.findNode(run.ID, node)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: run.ID, Target: target}
	if upDepth >= 0 {
		preds, err := a.db.Predecessors(run.ID, target.ID, upDepth)
		if err != nil {
			return nil, fmt.Errorf("failed to get predecessors: %w", err)
		}
		report.DirectPredecessors, report.IndirectPredecessors = split(preds)
	}
	if downDepth >= 0 {
		succs, err := a.db.Successors(run.ID, target.ID, downDepth)
		if err != nil {
			return nil, fmt.Errorf("failed to get successors: %w", err)
		}
		report.DirectSuccessors, report.IndirectSuccessors = split(succs)
	}
	return report, nil
}

func (a *Analyzer) findNode(runID, pattern string) (*graph.Node, error) {
	if n, err := a.db.GetNode(runID, graph.NodeID(pattern)); err == nil {
		return n, nil
	}
	nodes, err := a.db.FindNodesByLabel(runID, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to find node: %w", err)
	}
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, pattern)
	case 1:
		return nodes[0], nil
	}
	var names []string
	for _, n := range nodes {
		names = append(names, fmt.Sprintf("%s (%s)", n.ID, firstLine(n.Label)))
	}
	return nil, fmt.Errorf("ambiguous node pattern, found %d matches: %s", len(nodes), strings.Join(names, ", "))
}

func split(rs []storage.Reached) (direct, indirect []*graph.Node) {
	for _, r := range rs {
		if r.Distance == 1 {
			direct = append(direct, r.Node)
		} else {
			indirect = append(indirect, r.Node)
		}
	}
	return direct, indirect
}

func firstLine(s string) string {
	lines := strings.SplitN(s, "\n", 3)
	if len(lines) > 1 {
		return lines[0] + " " + lines[1]
	}
	return lines[0]
}

// FormatMarkdown formats the report as markdown
func (r *Report) FormatMarkdown() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## 可达性分析: %s\n\n", firstLine(r.Target.Label)))
	sb.WriteString(fmt.Sprintf("**节点:** `%s` (第 %d 行, 内联深度 %d)\n\n", r.Target.ID, r.Target.Line, r.Target.Depth))

	section := func(title, empty string, nodes []*graph.Node) {
		sb.WriteString("### " + title + "\n\n")
		if len(nodes) == 0 {
			sb.WriteString("_" + empty + "_\n\n")
			return
		}
		sb.WriteString("| 节点 | 类型 | 行号 | 内容 |\n")
		sb.WriteString("|------|------|------|------|\n")
		for _, n := range nodes {
			sb.WriteString(fmt.Sprintf("| `%s` | %s | %d | %s |\n", n.ID, n.Kind, n.Line, firstLine(n.Label)))
		}
		sb.WriteString("\n")
	}
	section("直接前驱", "无直接前驱", r.DirectPredecessors)
	if len(r.IndirectPredecessors) > 0 {
		section("间接前驱", "", r.IndirectPredecessors)
	}
	section("直接后继", "无直接后继", r.DirectSuccessors)
	if len(r.IndirectSuccessors) > 0 {
		section("间接后继", "", r.IndirectSuccessors)
	}
	return sb.String()
}

// Summary returns a brief summary of the report
func (r *Report) Summary() string {
	return fmt.Sprintf(
		"Target: %s, Direct Predecessors: %d, Indirect Predecessors: %d, Direct Successors: %d, Indirect Successors: %d",
		r.Target.ID,
		len(r.DirectPredecessors),
		len(r.IndirectPredecessors),
		len(r.DirectSuccessors),
		len(r.IndirectSuccessors),
	)
}
