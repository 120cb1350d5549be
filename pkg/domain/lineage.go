package domain

import "sort"

// Edge links a node to the ancestor that was fed to Step on its way to the node.
type Edge struct {
	Node     string `json:"node"`
	Step     string `json:"step"`
	Position int    `json:"position,omitempty"`
	Ancestor string `json:"ancestor"`
}

// Trace lists the lineage edges of node in pipeline order.
// Positions come from steps; ancestry keys without a matching step sort last, by name.
func Trace(node Node, steps []Step) []Edge {
	positions := make(map[string]int, len(steps))
	for _, s := range steps {
		positions[s.Name] = s.Position
	}

	edges := make([]Edge, 0, len(node.Ancestors))
	for step, ancestor := range node.Ancestors {
		edges = append(edges, Edge{
			Node:     node.ID,
			Step:     step,
			Position: positions[step],
			Ancestor: ancestor,
		})
	}

	sort.Slice(edges, func(i, j int) bool {
		pi, pj := edges[i].Position, edges[j].Position
		switch {
		case pi == 0 && pj == 0:
			return edges[i].Step < edges[j].Step
		case pi == 0:
			return false
		case pj == 0:
			return true
		default:
			return pi < pj
		}
	})
	return edges
}

// Source returns the ID of the root node the lineage starts from, or the node itself for roots.
func Source(node Node, steps []Step) string {
	edges := Trace(node, steps)
	if len(edges) == 0 {
		return node.ID
	}
	return edges[0].Ancestor
}
