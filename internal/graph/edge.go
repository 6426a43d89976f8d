package graph

// EdgeKind represents the type of relationship between nodes
type EdgeKind string

const (
	EdgeKindFlow        EdgeKind = "flow"        // Next_Step, WithItem, Next_Item
	EdgeKindBranch      EdgeKind = "branch"      // True / False / case arms
	EdgeKindJump        EdgeKind = "jump"        // Break→ / Continue→
	EdgeKindException   EdgeKind = "exception"   // try → handler
	EdgeKindContainment EdgeKind = "containment" // parent → child, call → callee
)

// Edge labels drawn by the builder.
const (
	LabelNextStep      = "Next_Step"
	LabelTrue          = "True"
	LabelFalse         = "False"
	LabelElse          = "Else"
	LabelCondition     = "Condition"
	LabelBreak         = "Break→"
	LabelContinue      = "Continue→"
	LabelAllExceptions = "All Exceptions"
	LabelExpressionIs  = "Expression_Is"
	LabelWithItem      = "WithItem"
	LabelNextItem      = "Next_Item"
	LabelDecorator     = "Decorator"
)

// Edge represents a directed relationship between two boxes
type Edge struct {
	From  NodeID   `json:"from"`
	To    NodeID   `json:"to"`
	Label string   `json:"label,omitempty"`
	Kind  EdgeKind `json:"kind"`
	// Constrained is false for edges that may point backwards or out of
	// their region; layout engines must not rank by them.
	Constrained bool `json:"constrained"`
}

type edgeKey struct {
	from, to NodeID
	label    string
}

// key returns the dedup key. Jump and exception edges are distinguished by
// label; every other kind is keyed on its endpoints alone.
func (e Edge) key() edgeKey {
	k := edgeKey{from: e.From, to: e.To}
	if e.Kind == EdgeKindJump || e.Kind == EdgeKindException {
		k.label = e.Label
	}
	return k
}
