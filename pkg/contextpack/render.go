package contextpack

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/recall/pkg/graph"
)

// Markdown renders the pack in its fixed section order. Empty sections are
// omitted; build errors render as their own section so a degraded pack is
// visibly degraded.
func Markdown(pack Pack) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Project Memory: %s\n", pack.ProjectID)

	if len(pack.Errors) > 0 {
		b.WriteString("\n## Errors\n")
		b.WriteString("Some memory could not be retrieved; this pack is partial.\n")
		for _, e := range pack.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	renderEntitySection(&b, "Goals", pack.Goals, renderGoal)
	renderEntitySection(&b, "Constraints", pack.Constraints, renderPlain)
	renderEntitySection(&b, "Preferences", pack.Preferences, renderPlain)
	renderEntitySection(&b, "Open Pain Points", pack.PainPoints, renderPlain)

	if len(pack.Artifacts) > 0 {
		b.WriteString("\n## Code Artifacts\n")
		for _, a := range pack.Artifacts {
			line := "- `" + a.Path + "`"
			if a.SymbolFQN != "" {
				line += " :: " + a.SymbolFQN
			}
			if a.Language != "" {
				line += " (" + a.Language + ")"
			}
			b.WriteString(line + "\n")
		}
	}

	renderEntitySection(&b, "Strategies", pack.Strategies, renderPlain)
	renderEntitySection(&b, "Decisions", pack.Decisions, renderPlain)

	if pack.Truncated {
		b.WriteString("\n_Pack truncated at the node budget; narrow with a focus goal or query for more depth._\n")
	}

	return b.String()
}

func renderEntitySection(b *strings.Builder, title string, entities []*graph.Entity, render func(*strings.Builder, *graph.Entity)) {
	if len(entities) == 0 {
		return
	}

	fmt.Fprintf(b, "\n## %s\n", title)
	for _, e := range entities {
		render(b, e)
	}
}

func renderGoal(b *strings.Builder, e *graph.Entity) {
	line := "- **" + e.Title + "**"
	if e.Priority > 0 {
		line += fmt.Sprintf(" (priority %d)", e.Priority)
	}
	if e.Status != graph.StatusActive {
		line += " [" + string(e.Status) + "]"
	}
	b.WriteString(line + "\n")

	if e.Body != "" {
		fmt.Fprintf(b, "  %s\n", e.Body)
	}
	for _, ac := range e.AcceptanceCriteria {
		fmt.Fprintf(b, "  - [ ] %s\n", ac)
	}
}

func renderPlain(b *strings.Builder, e *graph.Entity) {
	line := "- " + e.Title
	if e.MentionCount > 1 {
		line += fmt.Sprintf(" (seen %d times)", e.MentionCount)
	}
	b.WriteString(line + "\n")

	if e.Body != "" {
		fmt.Fprintf(b, "  %s\n", e.Body)
	}
}
