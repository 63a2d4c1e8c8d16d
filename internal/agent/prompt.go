package agent

import (
	"fmt"
	"strings"

	"github.com/arittr/chopstack/internal/task"
)

// promptTemplate mirrors the shape of the task's declarative fields: what
// to do, what criteria define done, and the scope fence the file-
// modification validator will enforce after the fact.
const promptTemplate = `%s

%s

You are working in an isolated checkout at %s. Only modify the files
listed below; everything else is off-limits for this task.

Allowed files:
%s
%s
`

// BuildPrompt renders the prompt for t, given the workdir it will run in
// and the forbidden-file list C2 computed for it (belonging to sibling
// tasks outside t's dependency chain).
func BuildPrompt(t task.Task, workdir string, forbidden []string) string {
	allowed := bulletList(t.Files)

	var criteria string
	if len(t.AcceptanceCriteria) > 0 {
		criteria = "Acceptance criteria:\n" + bulletList(t.AcceptanceCriteria)
	}

	var forbiddenBlock string
	if len(forbidden) > 0 {
		forbiddenBlock = "\nDo not modify (reserved by other tasks):\n" + bulletList(forbidden)
	}

	return fmt.Sprintf(promptTemplate, t.Name, t.Description, workdir, allowed, criteria) + forbiddenBlock
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "  (none declared)"
	}
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "  - %s\n", item)
	}
	return strings.TrimRight(sb.String(), "\n")
}
