package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/zheng/pyflow/internal/graph"
)

// writeMermaid emits a flowchart with one subgraph per region. Jump edges
// are dotted.
func writeMermaid(w io.Writer, g *graph.FlowGraph, opts ExportOptions) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "---\ntitle: %s\n---\n", mermaidText(title(g, opts)))
	fmt.Fprintf(bw, "flowchart %s\n", opts.Direction)

	for _, n := range g.TopLevel() {
		writeMermaidNode(bw, n, "    ")
	}
	var styles []string
	var visit func(r *graph.Region, indent string)
	visit = func(r *graph.Region, indent string) {
		text := r.Label
		if text == "" {
			text = " "
		}
		fmt.Fprintf(bw, "%ssubgraph %s [\"%s\"]\n", indent, mermaidID(r.ID), mermaidText(text))
		for _, id := range r.Nodes {
			if n, ok := g.Node(id); ok {
				writeMermaidNode(bw, n, indent+"    ")
			}
		}
		for _, child := range g.Children(r.ID) {
			visit(child, indent+"    ")
		}
		fmt.Fprintf(bw, "%send\n", indent)
		if r.Color != "" {
			styles = append(styles, fmt.Sprintf("    style %s fill:none,stroke:%s,stroke-width:2px", mermaidID(r.ID), r.Color))
		}
	}
	for _, r := range g.Children("") {
		visit(r, "    ")
	}

	for _, e := range g.Edges {
		arrow := "-->"
		if e.Kind == graph.EdgeKindJump {
			arrow = "-.->"
		}
		if e.Label != "" {
			arrow += "|\"" + mermaidText(e.Label) + "\"|"
		}
		fmt.Fprintf(bw, "    %s %s %s\n", mermaidID(string(e.From)), arrow, mermaidID(string(e.To)))
	}
	for _, s := range styles {
		bw.WriteString(s + "\n")
	}
	return bw.Flush()
}

func writeMermaidNode(w *bufio.Writer, n *graph.Node, indent string) {
	fmt.Fprintf(w, "%s%s[\"%s\"]\n", indent, mermaidID(string(n.ID)), mermaidText(n.Label))
}

// mermaidID maps a node or region ID onto Mermaid's identifier alphabet.
func mermaidID(id string) string {
	var b strings.Builder
	if strings.HasPrefix(id, "|") {
		b.WriteByte('n')
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

var mermaidEscaper = strings.NewReplacer(
	`"`, "#quot;",
	"\n", "<br/>",
	"<", "#lt;",
	">", "#gt;",
)

func mermaidText(s string) string {
	return mermaidEscaper.Replace(s)
}
