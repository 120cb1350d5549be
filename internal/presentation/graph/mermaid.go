package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/weave/pkg/domain"
)

// Lineage produces a Mermaid flowchart of the path from the source node to node.
// Each arrow is labelled with the step that consumed the ancestor. values maps
// node IDs to payloads for labels and may be nil.
func Lineage(node domain.Node, edges []domain.Edge, values map[string]string) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	label := func(id string) string {
		safeID := sanitizeMermaidID(id)
		text := shortID(id)
		if v, ok := values[id]; ok {
			text = fmt.Sprintf("%s <br/> %s", text, escapeLabel(v))
		}
		return fmt.Sprintf("%s[\"%s\"]", safeID, text)
	}

	if len(edges) == 0 {
		fmt.Fprintf(&sb, "    %s\n", label(node.ID))
	}
	for i, e := range edges {
		to := node.ID
		if i+1 < len(edges) {
			to = edges[i+1].Ancestor
		}
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", label(e.Ancestor), escapeLabel(e.Step), label(to))
	}

	sb.WriteString("\n    %% Overlay Styles\n")
	sb.WriteString("    classDef source fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	if len(edges) > 0 {
		fmt.Fprintf(&sb, "    class %s source;\n", sanitizeMermaidID(edges[0].Ancestor))
	}
	fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(node.ID))
	return sb.String()
}

// Pipeline produces a Mermaid flowchart of the steps of run, styled by status.
func Pipeline(run *domain.Run) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for i, s := range run.Steps {
		id := fmt.Sprintf("s%d", s.Position)
		fmt.Fprintf(&sb, "    %s[\"%d. %s <br/> %s/%s\"]\n", id, s.Position, escapeLabel(s.Name), s.Type, s.Method)
		if i > 0 {
			fmt.Fprintf(&sb, "    s%d --> %s\n", run.Steps[i-1].Position, id)
		}
	}

	sb.WriteString("\n    %% Status Styles\n")
	sb.WriteString("    classDef completed fill:#c8e6c9,stroke:#2e7d32,color:#000;\n")
	sb.WriteString("    classDef errored fill:#ffcdd2,stroke:#c62828,stroke-width:3px,color:#000;\n")
	sb.WriteString("    classDef running fill:#ffeb3b,stroke:#fbc02d,stroke-width:3px,color:#000;\n")
	for _, s := range run.Steps {
		if s.Status == domain.StepPending {
			continue
		}
		fmt.Fprintf(&sb, "    class s%d %s;\n", s.Position, s.Status)
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return "n" + s
}
