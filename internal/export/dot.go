package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/zheng/pyflow/internal/graph"
)

// writeDOT emits a Graphviz digraph. Regions become nested clusters and
// jump edges are excluded from ranking.
func writeDOT(w io.Writer, g *graph.FlowGraph, opts ExportOptions) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", dotQuote("flow"))
	fmt.Fprintf(bw, "    graph [label=%s, labelloc=t, rankdir=%s, compound=true];\n",
		dotQuote(title(g, opts)), opts.Direction)
	fmt.Fprintf(bw, "    node [shape=box, style=filled, fillcolor=white, fontname=%s];\n", dotQuote("Helvetica"))
	fmt.Fprintf(bw, "    edge [fontname=%s, fontsize=10];\n", dotQuote("Helvetica"))

	for _, n := range g.TopLevel() {
		writeDOTNode(bw, n, "    ")
	}
	for _, r := range g.Children("") {
		writeDOTCluster(bw, g, r, "    ")
	}
	// Regions whose parent was never registered still need drawing.
	for _, r := range g.Regions {
		if r.Parent == "" {
			continue
		}
		if _, ok := g.Region(r.Parent); !ok {
			writeDOTCluster(bw, g, r, "    ")
		}
	}

	for _, e := range g.Edges {
		attrs := []string{}
		if e.Label != "" {
			attrs = append(attrs, "label="+dotQuote(e.Label))
		}
		switch e.Kind {
		case graph.EdgeKindJump:
			attrs = append(attrs, "style=dashed")
		case graph.EdgeKindException:
			attrs = append(attrs, "color=red")
		}
		if !e.Constrained {
			attrs = append(attrs, "constraint=false")
		}
		fmt.Fprintf(bw, "    %s -> %s", dotQuote(string(e.From)), dotQuote(string(e.To)))
		if len(attrs) > 0 {
			fmt.Fprintf(bw, " [%s]", strings.Join(attrs, ", "))
		}
		bw.WriteString(";\n")
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

func writeDOTCluster(w *bufio.Writer, g *graph.FlowGraph, r *graph.Region, indent string) {
	fmt.Fprintf(w, "%ssubgraph %s {\n", indent, dotQuote(r.ID))
	inner := indent + "    "
	fmt.Fprintf(w, "%slabel=%s;\n", inner, dotQuote(r.Label))
	fmt.Fprintf(w, "%sstyle=solid;\n", inner)
	if r.Color != "" {
		fmt.Fprintf(w, "%spenwidth=2;\n", inner)
		fmt.Fprintf(w, "%scolor=%s;\n", inner, dotQuote(r.Color))
	}
	for _, id := range r.Nodes {
		if n, ok := g.Node(id); ok {
			writeDOTNode(w, n, inner)
		}
	}
	for _, child := range g.Children(r.ID) {
		writeDOTCluster(w, g, child, inner)
	}
	fmt.Fprintf(w, "%s}\n", indent)
}

func writeDOTNode(w *bufio.Writer, n *graph.Node, indent string) {
	fmt.Fprintf(w, "%s%s [label=%s];\n", indent, dotQuote(string(n.ID)), dotQuote(n.Label))
}

// dotQuote renders s as a double-quoted DOT ID.
func dotQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
