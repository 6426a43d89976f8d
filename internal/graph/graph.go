package graph

// Region is a visual cluster of nodes: a branch, a loop body, an inlined
// call and so on. Regions nest through Parent.
type Region struct {
	ID     string   `json:"id"`
	Label  string   `json:"label,omitempty"`
	Color  string   `json:"color"`
	Parent string   `json:"parent,omitempty"`
	Nodes  []NodeID `json:"nodes"`
}

// DiagnosticKind classifies non-fatal findings of a build.
type DiagnosticKind string

const (
	DiagUnresolved  DiagnosticKind = "unresolved"
	DiagUnsupported DiagnosticKind = "unsupported"
	DiagStopped     DiagnosticKind = "stopped"
)

// Diagnostic is a non-fatal problem recorded while building.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Node    NodeID         `json:"node"`
	Line    int            `json:"line"`
	Message string         `json:"message"`
}

// Stats summarizes a graph.
type Stats struct {
	Nodes       int `json:"nodes"`
	Edges       int `json:"edges"`
	Regions     int `json:"regions"`
	Expansions  int `json:"expansions"`
	Unresolved  int `json:"unresolved"`
	Unsupported int `json:"unsupported"`
	Stopped     int `json:"stopped"`
	MaxDepth    int `json:"max_depth"`
}

// FlowGraph is the accumulated output of one build: boxes, deduplicated
// edges and clusters, in insertion order.
type FlowGraph struct {
	Entry       NodeID       `json:"entry"`
	Nodes       []*Node      `json:"nodes"`
	Edges       []*Edge      `json:"edges"`
	Regions     []*Region    `json:"regions"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Stats       Stats        `json:"stats"`

	nodeIndex   map[NodeID]*Node
	edgeSet     map[edgeKey]struct{}
	regionIndex map[string]*Region
}

// New creates an empty graph.
func New() *FlowGraph {
	return &FlowGraph{
		nodeIndex:   make(map[NodeID]*Node),
		edgeSet:     make(map[edgeKey]struct{}),
		regionIndex: make(map[string]*Region),
	}
}

// AddNode inserts n. A node already present under the same ID is kept and
// false is returned.
func (g *FlowGraph) AddNode(n Node) bool {
	if _, ok := g.nodeIndex[n.ID]; ok {
		return false
	}
	node := &n
	g.nodeIndex[n.ID] = node
	g.Nodes = append(g.Nodes, node)
	if r, ok := g.regionIndex[n.Region]; ok {
		r.Nodes = append(r.Nodes, n.ID)
	}
	g.Stats.Nodes = len(g.Nodes)
	if n.Depth > g.Stats.MaxDepth {
		g.Stats.MaxDepth = n.Depth
	}
	return true
}

// AddEdge inserts e unless an edge with the same dedup key exists.
// Re-adding is a no-op that returns false.
func (g *FlowGraph) AddEdge(e Edge) bool {
	k := e.key()
	if _, ok := g.edgeSet[k]; ok {
		return false
	}
	g.edgeSet[k] = struct{}{}
	edge := e
	g.Edges = append(g.Edges, &edge)
	g.Stats.Edges = len(g.Edges)
	return true
}

// AddRegion registers r. An existing region with the same ID is returned
// unchanged.
func (g *FlowGraph) AddRegion(r Region) *Region {
	if existing, ok := g.regionIndex[r.ID]; ok {
		return existing
	}
	region := &r
	g.regionIndex[r.ID] = region
	g.Regions = append(g.Regions, region)
	g.Stats.Regions = len(g.Regions)
	return region
}

// Node looks a node up by ID.
func (g *FlowGraph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodeIndex[id]
	return n, ok
}

// Region looks a region up by ID.
func (g *FlowGraph) Region(id string) (*Region, bool) {
	r, ok := g.regionIndex[id]
	return r, ok
}

// HasEdge reports whether an edge from→to with the given label exists.
func (g *FlowGraph) HasEdge(from, to NodeID, label string) bool {
	for _, e := range g.Edges {
		if e.From == from && e.To == to && e.Label == label {
			return true
		}
	}
	return false
}

// Out returns the edges leaving id, in insertion order.
func (g *FlowGraph) Out(id NodeID) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// In returns the edges entering id, in insertion order.
func (g *FlowGraph) In(id NodeID) []*Edge {
	var in []*Edge
	for _, e := range g.Edges {
		if e.To == id {
			in = append(in, e)
		}
	}
	return in
}

// Children returns the regions whose parent is id; "" lists top-level
// regions.
func (g *FlowGraph) Children(id string) []*Region {
	var out []*Region
	for _, r := range g.Regions {
		if r.Parent == id {
			out = append(out, r)
		}
	}
	return out
}

// TopLevel returns nodes that belong to no region.
func (g *FlowGraph) TopLevel() []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if _, ok := g.regionIndex[n.Region]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// AddDiagnostic records a diagnostic and updates the counters.
func (g *FlowGraph) AddDiagnostic(d Diagnostic) {
	g.Diagnostics = append(g.Diagnostics, d)
	switch d.Kind {
	case DiagUnresolved:
		g.Stats.Unresolved++
	case DiagUnsupported:
		g.Stats.Unsupported++
	case DiagStopped:
		g.Stats.Stopped++
	}
}
