package split

import (
	"fmt"
	"strings"

	"github.com/splintergit/splinter/pkg/patch"
)

// ContentReader fetches a file's content at the pre-change revision. A path
// that does not exist there is treated as empty content.
type ContentReader interface {
	ReadFile(path string) ([]byte, error)
	PathExists(path string) bool
}

// DiffGenerator produces a unified diff fragment between two states of one
// file, or "" when they are equal. isNew marks the fragment as a file
// creation, isDelete as a deletion.
type DiffGenerator interface {
	Unified(path string, before, after []string, isNew, isDelete bool) (string, error)
}

// Assemble replays the classified ranges commit by commit and emits one
// patch per commit. For every commit and every file it touches, "before" is
// the cumulative state of all earlier commits and "after" adds the commit's
// own ranges; the fragment between the two goes into the commit's patch. A
// newly created file is announced as a creation exactly once, in the first
// commit that gives it nonempty content.
func Assemble(files []*patch.FileDiff, changes []*patch.CommitChanges, contents ContentReader, gen DiffGenerator) ([]*patch.AssembledPatch, error) {
	byPath := make(map[string]*patch.FileDiff, len(files))
	originals := make(map[string][]string, len(files))
	state := make(map[string][]string, len(files))
	for _, fd := range files {
		byPath[fd.Path] = fd
		var orig []string
		if !fd.IsNew && contents.PathExists(fd.Path) {
			raw, err := contents.ReadFile(fd.Path)
			if err != nil {
				return nil, fmt.Errorf("reading original content of %s: %w", fd.Path, err)
			}
			orig = SplitLines(raw)
		}
		originals[fd.Path] = orig
		state[fd.Path] = orig
	}

	sel := Selection{}
	introduced := make(map[string]bool)
	out := make([]*patch.AssembledPatch, 0, len(changes))
	for _, cc := range changes {
		var sb strings.Builder
		for _, fc := range cc.Files {
			fd := byPath[fc.Path]
			if fd == nil {
				// Not part of the diff. The validator is the authoritative
				// completeness check, so this is not fatal here.
				continue
			}
			before := state[fc.Path]
			for _, r := range fc.Ranges {
				sel.Add(r)
			}
			after := Replay(originals[fc.Path], fd.Hunks, sel)
			state[fc.Path] = after

			isNew := fd.IsNew && !introduced[fc.Path] && len(before) == 0 && len(after) > 0
			isDelete := fd.IsDelete && len(before) > 0 && len(after) == 0
			frag, err := gen.Unified(fc.Path, before, after, isNew, isDelete)
			if err != nil {
				return nil, fmt.Errorf("diffing %s: %w", fc.Path, err)
			}
			if frag == "" {
				// The commit made no net change to this file, e.g. an
				// addition and removal that cancel out.
				continue
			}
			sb.WriteString(frag)
			if isNew {
				introduced[fc.Path] = true
			}
		}
		out = append(out, &patch.AssembledPatch{Commit: cc.Commit, Patch: sb.String()})
	}
	return out, nil
}

// SplitLines breaks file content into lines without their newlines. Empty
// content has no lines; a final line without a newline still counts as a
// line.
func SplitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}
