package classify

import (
	"fmt"
	"strings"

	"github.com/splintergit/splinter/pkg/patch"
)

const repairSystemPrompt = `You fix unified diff patches that git apply rejected.
Return only the corrected patch as a unified diff inside a single fenced code block.
Keep the patch's intent: the same lines must be added and removed, only the headers,
line numbers, and context may change.`

func planSystemPrompt(maxCommits int) string {
	var sb strings.Builder
	sb.WriteString(`You split one large git change into an ordered sequence of small, atomic commits.
The user message shows the diff. Every added or removed line is prefixed with its
hunk id and line index, like "path#0:7". Context lines carry no index and must not
be assigned.

Respond with a single JSON object and nothing else:
{
  "commits": [{"id": "c1", "message": "<subject line>", "description": "<body>"}],
  "assignments": [{"hunk": "path#0", "line": 7, "commit": "c1"}]
}

Rules:
- commits are applied in the order given; earlier commits must not depend on later ones
- every added or removed line must appear in exactly one assignment
- group lines that implement one logical change into the same commit
- commit messages are imperative and specific
`)
	if maxCommits > 0 {
		fmt.Fprintf(&sb, "- produce at most %d commits\n", maxCommits)
	}
	return sb.String()
}

// RenderDiff renders the change-block model with the hunk ids and line
// indexes the classifier must use in its assignments.
func RenderDiff(files []*patch.FileDiff) string {
	var sb strings.Builder
	for _, fd := range files {
		switch {
		case fd.IsNew:
			fmt.Fprintf(&sb, "=== %s (new file)\n", fd.Path)
		case fd.IsDelete:
			fmt.Fprintf(&sb, "=== %s (deleted)\n", fd.Path)
		default:
			fmt.Fprintf(&sb, "=== %s\n", fd.Path)
		}
		for _, h := range fd.Hunks {
			fmt.Fprintf(&sb, "--- hunk %s @@ -%d,%d +%d,%d @@\n", h.ID, h.OrigStart, h.OrigLines, h.NewStart, h.NewLines)
			for i, ln := range h.Lines {
				switch ln.Kind {
				case patch.Added:
					fmt.Fprintf(&sb, "%s:%d +%s\n", h.ID, i, ln.Text)
				case patch.Removed:
					fmt.Fprintf(&sb, "%s:%d -%s\n", h.ID, i, ln.Text)
				default:
					fmt.Fprintf(&sb, "  %s\n", ln.Text)
				}
			}
		}
	}
	return sb.String()
}
