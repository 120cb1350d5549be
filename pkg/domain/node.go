package domain

import "github.com/google/uuid"

// Ancestry maps a step name to the ID of the ancestor node that was fed to that step.
// Values are treated as immutable: use With to derive a new one.
type Ancestry map[string]string

// With returns a new Ancestry holding every entry of a plus stepName -> nodeID.
func (a Ancestry) With(stepName, nodeID string) Ancestry {
	next := make(Ancestry, len(a)+1)
	for k, v := range a {
		next[k] = v
	}
	next[stepName] = nodeID
	return next
}

// Clone returns an independent copy. A nil ancestry clones to an empty one.
func (a Ancestry) Clone() Ancestry {
	next := make(Ancestry, len(a))
	for k, v := range a {
		next[k] = v
	}
	return next
}

// Node is a unit of data flowing through the pipeline.
type Node struct {
	ID string `json:"id"`

	// Value is the payload. The engine never inspects it.
	Value string `json:"value"`

	// ParentNodeID references the input node this one was derived from.
	// Empty for root nodes.
	ParentNodeID string `json:"parent_node_id,omitempty"`

	// Ancestors is stamped by the engine after the producing step returns.
	// Step logic must leave it alone.
	Ancestors Ancestry `json:"ancestors"`
}

// NewNode creates a root node with a fresh ID.
func NewNode(value string) Node {
	return Node{
		ID:        uuid.NewString(),
		Value:     value,
		Ancestors: Ancestry{},
	}
}

// Derive creates a child of n carrying value.
func (n Node) Derive(value string) Node {
	child := NewNode(value)
	child.ParentNodeID = n.ID
	return child
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool {
	return n.ParentNodeID == ""
}

// NodeIDs returns the IDs of nodes, preserving order.
func NodeIDs(nodes []Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
