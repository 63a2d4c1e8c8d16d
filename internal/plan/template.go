package plan

import (
	"fmt"
	"strings"

	"github.com/arittr/chopstack/internal/task"
)

// descriptionExcerptLimit bounds how much of a task's description is
// folded into a generated commit message body.
const descriptionExcerptLimit = 200

// CommitMessage renders the commit message for a completed task, per
// spec.md §4.4: a subject line built from the task name, followed by a
// description excerpt and the list of changed files.
func CommitMessage(t task.Task, changedFiles []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n\n", t.Name)

	if excerpt := excerpt(t.Description, descriptionExcerptLimit); excerpt != "" {
		fmt.Fprintf(&sb, "%s\n\n", excerpt)
	}

	if len(changedFiles) > 0 {
		sb.WriteString("Files changed:\n")
		for _, f := range changedFiles {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
	}

	fmt.Fprintf(&sb, "\ntask-id: %s\n", t.ID)

	return sb.String()
}

func excerpt(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// FormatPlanForDisplay renders a human-readable summary of a plan: its
// phases (if any) and tasks, with dependencies and complexity, suitable
// for printing to a terminal before a run starts.
func FormatPlanForDisplay(p task.Plan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Plan: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&sb, "  %s\n", p.Description)
	}
	fmt.Fprintf(&sb, "Strategy: %s\n", p.Strategy)
	fmt.Fprintf(&sb, "Tasks: %d\n\n", p.TaskCount())

	if len(p.Phases) > 0 {
		for _, ph := range p.Phases {
			fmt.Fprintf(&sb, "Phase %s: %s (%s)\n", ph.ID, ph.Name, ph.Strategy)
			if len(ph.Requires) > 0 {
				fmt.Fprintf(&sb, "  requires: %s\n", strings.Join(ph.Requires, ", "))
			}
			for _, id := range ph.Tasks {
				writeTaskLine(&sb, p, id)
			}
		}
	} else {
		for _, t := range p.Tasks {
			writeTaskLine(&sb, p, t.ID)
		}
	}

	if len(p.SuccessMetrics) > 0 {
		sb.WriteString("\nSuccess metrics:\n")
		for _, m := range p.SuccessMetrics {
			fmt.Fprintf(&sb, "  - %s\n", m)
		}
	}

	return sb.String()
}

func writeTaskLine(sb *strings.Builder, p task.Plan, id string) {
	t, ok := p.GetTask(id)
	if !ok {
		fmt.Fprintf(sb, "  - %s (unknown task)\n", id)
		return
	}
	fmt.Fprintf(sb, "  - [%s] %s (%s)", t.ID, t.Name, t.Complexity)
	if t.HasDependencies() {
		fmt.Fprintf(sb, " <- %s", strings.Join(t.DependsOn, ", "))
	}
	sb.WriteString("\n")
}
