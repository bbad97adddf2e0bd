// Package split is the partition and reconstruction engine: it turns a
// classified diff into per-commit line ranges and replays those ranges into
// sequential patches whose combined effect is byte-identical to the
// original change.
package split

import (
	"errors"
	"fmt"

	"github.com/splintergit/splinter/pkg/patch"
)

// UnclassifiedLineError reports a changed line with no usable commit
// assignment. Only returned when Options.Strict is set; the default policy
// falls back to the first commit of the plan.
type UnclassifiedLineError struct {
	HunkID string
	Index  int
}

func (e *UnclassifiedLineError) Error() string {
	return fmt.Sprintf("line %d of hunk %s is not assigned to any commit", e.Index, e.HunkID)
}

// Options controls partitioning policy.
type Options struct {
	// Strict fails on a line the classification does not cover (or that
	// names an unknown commit) instead of attributing it to the first
	// commit of the plan.
	Strict bool
}

// Partition groups every addition/removal line of the diff into maximal
// contiguous ranges per commit. Output has one entry per plan commit, in
// plan order; within a commit, files appear in diff order and ranges in
// scan order.
func Partition(files []*patch.FileDiff, plan []patch.Commit, cls patch.Classification, opts Options) ([]*patch.CommitChanges, error) {
	if len(plan) == 0 {
		return nil, errors.New("commit plan is empty")
	}

	changes := make([]*patch.CommitChanges, len(plan))
	position := make(map[string]int, len(plan))
	for i, c := range plan {
		changes[i] = &patch.CommitChanges{Commit: c}
		position[c.ID] = i
	}

	for _, fd := range files {
		collected := make([][]patch.LineRange, len(plan))
		for _, h := range fd.Hunks {
			origLine := h.OrigStart
			newLine := h.NewStart
			var cur *patch.LineRange
			curCommit := -1
			flush := func() {
				if cur != nil {
					collected[curCommit] = append(collected[curCommit], *cur)
					cur = nil
				}
			}
			for i, ln := range h.Lines {
				if ln.Kind == patch.Context {
					// Context never joins a range and consumes a line on
					// both sides.
					flush()
					origLine++
					newLine++
					continue
				}
				id, ok := cls[patch.LineKey{HunkID: h.ID, Index: i}]
				ci := 0
				if ok {
					ci, ok = position[id]
				}
				if !ok {
					if opts.Strict {
						return nil, &UnclassifiedLineError{HunkID: h.ID, Index: i}
					}
					ci = 0
				}
				if cur != nil && (curCommit != ci || cur.Kind != ln.Kind || cur.End+1 != i) {
					flush()
				}
				if cur == nil {
					cur = &patch.LineRange{
						HunkID:   h.ID,
						Start:    i,
						End:      i,
						Kind:     ln.Kind,
						OrigLine: patch.NoLine,
						NewLine:  patch.NoLine,
					}
					if ln.Kind == patch.Removed {
						cur.OrigLine = origLine
					} else {
						cur.NewLine = newLine
					}
					curCommit = ci
				} else {
					cur.End = i
				}
				cur.Lines = append(cur.Lines, ln.Text)
				if ln.Kind == patch.Removed {
					origLine++
				} else {
					newLine++
				}
			}
			flush()
		}
		for ci := range plan {
			if len(collected[ci]) > 0 {
				changes[ci].Files = append(changes[ci].Files, patch.FileChanges{
					Path:   fd.Path,
					Ranges: collected[ci],
				})
			}
		}
	}
	return changes, nil
}

// Validate checks that the partition covers every changed line of the diff
// exactly once: total addition/removal lines must equal total partitioned
// lines, and no (hunk, index) may appear in two commits. It reports
// problems as strings and never fails hard; the failure policy belongs to
// the caller.
func Validate(files []*patch.FileDiff, changes []*patch.CommitChanges) (bool, []string) {
	errs := []string{}

	total := 0
	for _, fd := range files {
		for _, h := range fd.Hunks {
			for _, ln := range h.Lines {
				if ln.Kind != patch.Context {
					total++
				}
			}
		}
	}

	partitioned := 0
	owner := make(map[patch.LineKey]string)
	for _, cc := range changes {
		for _, fc := range cc.Files {
			for _, r := range fc.Ranges {
				partitioned += r.Len()
				for i := r.Start; i <= r.End; i++ {
					key := patch.LineKey{HunkID: r.HunkID, Index: i}
					if prev, dup := owner[key]; dup {
						errs = append(errs, fmt.Sprintf("line %d of hunk %s assigned to both %s and %s", i, r.HunkID, prev, cc.Commit.ID))
						continue
					}
					owner[key] = cc.Commit.ID
				}
			}
		}
	}

	if partitioned != total {
		errs = append(errs, fmt.Sprintf("diff has %d changed lines but %d were partitioned", total, partitioned))
	}
	return len(errs) == 0, errs
}
