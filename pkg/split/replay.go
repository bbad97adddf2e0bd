package split

import (
	"github.com/splintergit/splinter/pkg/patch"
)

// Selection names the addition/removal lines a replay should apply.
type Selection map[patch.LineKey]bool

// Add marks every line of the range as selected.
func (s Selection) Add(r patch.LineRange) {
	for i := r.Start; i <= r.End; i++ {
		s[patch.LineKey{HunkID: r.HunkID, Index: i}] = true
	}
}

// AddAll marks every changed line of every hunk as selected.
func (s Selection) AddAll(hunks []*patch.Hunk) {
	for _, h := range hunks {
		for i, ln := range h.Lines {
			if ln.Kind != patch.Context {
				s[patch.LineKey{HunkID: h.ID, Index: i}] = true
			}
		}
	}
}

// Replay rebuilds a file's content from its original lines, its hunks in
// file order, and a selection of changed lines to apply. A selected
// addition is copied into the result; a removal always consumes one
// original line, which is kept only while the removal is unselected;
// context lines copy and consume unconditionally. Replay is a pure
// function: every "state as of commit N" is recomputed from the immutable
// original rather than patched forward, so line numbers can never drift
// between sequential patches.
func Replay(original []string, hunks []*patch.Hunk, sel Selection) []string {
	out := make([]string, 0, len(original))
	pos := 0
	for _, h := range hunks {
		limit := h.OrigStart - 1
		if !h.ConsumesOriginal() {
			// A pure-insertion hunk declares the line it anchors after.
			limit = h.OrigStart
		}
		for pos < limit && pos < len(original) {
			out = append(out, original[pos])
			pos++
		}
		for i, ln := range h.Lines {
			switch ln.Kind {
			case patch.Added:
				if sel[patch.LineKey{HunkID: h.ID, Index: i}] {
					out = append(out, ln.Text)
				}
			case patch.Removed:
				if pos < len(original) {
					if !sel[patch.LineKey{HunkID: h.ID, Index: i}] {
						out = append(out, original[pos])
					}
					pos++
				}
			default:
				if pos < len(original) {
					out = append(out, original[pos])
					pos++
				}
			}
		}
	}
	out = append(out, original[pos:]...)
	return out
}
