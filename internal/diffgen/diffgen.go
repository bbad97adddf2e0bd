// Package diffgen produces unified-diff fragments (---/+++ headers, @@
// hunks) that `git apply -p1` accepts, including /dev/null headers for file
// creations and deletions.
package diffgen

import (
	"errors"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of context lines per hunk when none is
// configured, matching the git default.
const DefaultContext = 3

// Generator turns before/after file states into unified diff text.
type Generator struct {
	// Context is the number of context lines per hunk. Zero means
	// DefaultContext.
	Context int
}

// Unified returns the unified diff between two states of one file, or ""
// when the states are equal. File names carry the a/ and b/ prefixes git
// strips at -p1; a creation diffs from /dev/null and a deletion diffs to
// it.
func (g Generator) Unified(path string, before, after []string, isNew, isDelete bool) (string, error) {
	if slices.Equal(before, after) {
		return "", nil
	}
	ctx := g.Context
	if ctx <= 0 {
		ctx = DefaultContext
	}
	from := "a/" + path
	if isNew {
		from = "/dev/null"
	}
	to := "b/" + path
	if isDelete {
		to = "/dev/null"
	}
	u := difflib.UnifiedDiff{
		A:        withNewlines(before),
		B:        withNewlines(after),
		FromFile: from,
		ToFile:   to,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", err
	}
	return s, nil
}

// CheckPatch applies the syntactic floor for a generated patch: nonempty
// after trimming, a file header, and at least one hunk header. Whether the
// patch actually applies is the apply step's problem.
func CheckPatch(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errors.New("patch is empty")
	}
	if !strings.Contains("\n"+trimmed, "\n--- ") || !strings.Contains("\n"+trimmed, "\n+++ ") {
		return errors.New("patch has no file header")
	}
	if !strings.Contains(trimmed, "@@ -") {
		return errors.New("patch has no hunk header")
	}
	return nil
}

// withNewlines terminates every line so difflib emits well-formed hunks.
// Content without a trailing newline is normalized to have one.
func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, ln := range lines {
		out[i] = ln + "\n"
	}
	return out
}
