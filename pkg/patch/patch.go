// Package patch holds the change-block model shared by the diff parser, the
// partitioner, and the reconstructor.
package patch

// LineKind tags a hunk line as context, addition, or removal.
type LineKind int

const (
	Context LineKind = iota
	Added
	Removed
)

func (k LineKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "context"
	}
}

// Line is one line of a hunk body, without its +/-/space prefix.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk is one contiguous change block of a file diff. Immutable once parsed.
type Hunk struct {
	ID        string
	OrigStart int
	OrigLines int
	NewStart  int
	NewLines  int
	Lines     []Line
}

// ConsumesOriginal reports whether any line of the hunk reads from the
// original file. Pure-insertion hunks declare the original line they anchor
// *after*, not the first line they replace.
func (h *Hunk) ConsumesOriginal() bool {
	for _, ln := range h.Lines {
		if ln.Kind != Added {
			return true
		}
	}
	return false
}

// FileDiff is the parsed diff of a single file, with hunks in file order.
type FileDiff struct {
	Path     string
	IsNew    bool
	IsDelete bool
	Hunks    []*Hunk
}

// LineKey addresses one addition/removal line inside a hunk.
type LineKey struct {
	HunkID string
	Index  int
}

// Classification maps every addition/removal line to a commit ID. Context
// lines are never classified.
type Classification map[LineKey]string

// Commit is one entry of the ordered commit plan.
type Commit struct {
	ID          string
	Message     string
	Description string
}

// Plan is what the classifier returns: the ordered commits plus the
// per-line assignments.
type Plan struct {
	Commits     []Commit
	Assignments Classification
}

// NoLine marks the line-number field of a LineRange that is not meaningful
// for its kind (original line for additions, new line for removals).
const NoLine = -1

// LineRange is a maximal run of consecutive same-kind lines within one hunk
// assigned to the same commit. Start and End are inclusive indexes into the
// hunk's Lines.
type LineRange struct {
	HunkID   string
	Start    int
	End      int
	Kind     LineKind
	Lines    []string
	OrigLine int
	NewLine  int
}

func (r LineRange) Len() int {
	return r.End - r.Start + 1
}

// FileChanges is the set of ranges one commit owns in one file, in scan
// order.
type FileChanges struct {
	Path   string
	Ranges []LineRange
}

// CommitChanges is the partitioner's output for one commit: its ranges
// grouped per file, files in diff order.
type CommitChanges struct {
	Commit Commit
	Files  []FileChanges
}

// AssembledPatch is one commit's final textual patch, covering every file
// the commit touches.
type AssembledPatch struct {
	Commit Commit
	Patch  string
}
