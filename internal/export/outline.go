package export

import (
	"fmt"
	"io"

	"github.com/ddddddO/gtree"

	"github.com/zheng/pyflow/internal/graph"
)

// writeOutline prints the region tree: every region lists its nodes, then
// its nested regions. Node text carries the ID so that equal labels stay
// separate entries.
func writeOutline(w io.Writer, g *graph.FlowGraph, opts ExportOptions) error {
	root := gtree.NewRoot(title(g, opts))
	for _, n := range g.TopLevel() {
		root.Add(outlineNode(n))
	}
	var visit func(parent *gtree.Node, r *graph.Region)
	visit = func(parent *gtree.Node, r *graph.Region) {
		text := r.Label
		if text == "" {
			text = r.ID
		}
		node := parent.Add(fmt.Sprintf("[%s] %s", r.ID, text))
		for _, id := range r.Nodes {
			if n, ok := g.Node(id); ok {
				node.Add(outlineNode(n))
			}
		}
		for _, child := range g.Children(r.ID) {
			visit(node, child)
		}
	}
	for _, r := range g.Children("") {
		visit(root, r)
	}
	if err := gtree.OutputFromRoot(w, root); err != nil {
		return fmt.Errorf("outline: %w", err)
	}
	return nil
}

func outlineNode(n *graph.Node) string {
	return fmt.Sprintf("%s  %s", oneLine(n.Label), n.ID)
}
