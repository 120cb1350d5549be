package tui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aretw0/weave/pkg/domain"
)

// RunMarkdown builds a markdown report of run and its steps.
func RunMarkdown(run *domain.Run) string {
	var sb strings.Builder
	name := run.Config.Name
	if name == "" {
		name = "pipeline"
	}
	fmt.Fprintf(&sb, "# Run `%s`\n\n", run.ID)
	fmt.Fprintf(&sb, "- **Pipeline:** %s\n", name)
	fmt.Fprintf(&sb, "- **Status:** %s\n", run.Status)
	fmt.Fprintf(&sb, "- **Created:** %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Updated:** %s\n\n", run.UpdatedAt.Format(time.RFC3339))

	sb.WriteString("| # | Step | Implementation | Status | Attempts | Error |\n")
	sb.WriteString("|---|------|----------------|--------|----------|-------|\n")
	for _, s := range run.Steps {
		fmt.Fprintf(&sb, "| %d | %s | `%s/%s` | %s | %d | %s |\n",
			s.Position, s.Name, s.Type, s.Method, s.Status, s.Attempt, strings.ReplaceAll(s.Error, "|", "\\|"))
	}
	return sb.String()
}

// WriteRun prints run and its steps as aligned columns.
func WriteRun(w io.Writer, run *domain.Run, p Palette) error {
	fmt.Fprintf(w, "run %s  %s\n", run.ID, p.Status(string(run.Status)))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tSTEP\tIMPL\tSTATUS\tATTEMPTS\tERROR")
	for _, s := range run.Steps {
		fmt.Fprintf(tw, "%d\t%s\t%s/%s\t%s\t%d\t%s\n",
			s.Position, s.Name, s.Type, s.Method, p.Status(string(s.Status)), s.Attempt, s.Error)
	}
	return tw.Flush()
}

// WriteRuns prints one line per run.
func WriteRuns(w io.Writer, runs []domain.Run, p Palette) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPIPELINE\tSTATUS\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Config.Name, p.Status(string(r.Status)), r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// WriteNodes prints one node per line.
func WriteNodes(w io.Writer, nodes []domain.Node, p Palette) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s  %s\n", p.Faint(n.ID), n.Value)
	}
}
