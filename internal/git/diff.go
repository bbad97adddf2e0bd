package git

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/splintergit/splinter/pkg/patch"
)

// Diff is one parsed git diff plus the raw text it came from.
type Diff interface {
	Files() []*patch.FileDiff
	Raw() string
	Context() DiffContext
}

// DiffContext names the revisions and repository a diff is taken from.
// Ignore holds doublestar globs for paths to drop from the diff.
type DiffContext struct {
	Base   string
	Head   string
	Dir    string
	Ignore []string
}

type GitDiff struct {
	context DiffContext
	raw     []byte
	files   []*patch.FileDiff
}

// NewDiff runs git diff between the context's revisions and parses the
// output into the change-block model.
func NewDiff(context DiffContext) (Diff, error) {
	return newDiffWithExecutor(context, newRealGitExecutor(context.Dir))
}

func newDiffWithExecutor(context DiffContext, executor gitCommandExecutor) (Diff, error) {
	raw, err := executor.execute("git", "diff", context.Base, context.Head)
	if err != nil {
		return nil, fmt.Errorf("git diff %s %s: %w", context.Base, context.Head, err)
	}
	files, err := parseDiff(raw, context.Ignore)
	if err != nil {
		return nil, err
	}
	return &GitDiff{
		context: context,
		raw:     raw,
		files:   files,
	}, nil
}

func (gd *GitDiff) Files() []*patch.FileDiff {
	return gd.files
}

func (gd *GitDiff) Raw() string {
	return string(gd.raw)
}

func (gd *GitDiff) Context() DiffContext {
	return gd.context
}

// parseDiff converts raw unified diff output into FileDiffs, skipping files
// matching an ignore glob. Hunk IDs are path#ordinal and stay stable for
// the lifetime of the diff.
func parseDiff(raw []byte, ignore []string) ([]*patch.FileDiff, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(raw)
	if err != nil {
		return nil, err
	}

	files := make([]*patch.FileDiff, 0, len(fileDiffs))
	for _, d := range fileDiffs {
		isNew := d.OrigName == "/dev/null"
		isDelete := d.NewName == "/dev/null"
		path := strings.TrimPrefix(d.NewName, "b/")
		if isDelete {
			path = strings.TrimPrefix(d.OrigName, "a/")
		}
		if ignored(path, ignore) {
			continue
		}
		fd := &patch.FileDiff{
			Path:     path,
			IsNew:    isNew,
			IsDelete: isDelete,
			Hunks:    make([]*patch.Hunk, 0, len(d.Hunks)),
		}
		for i, hunk := range d.Hunks {
			fd.Hunks = append(fd.Hunks, &patch.Hunk{
				ID:        fmt.Sprintf("%s#%d", path, i),
				OrigStart: int(hunk.OrigStartLine),
				OrigLines: int(hunk.OrigLines),
				NewStart:  int(hunk.NewStartLine),
				NewLines:  int(hunk.NewLines),
				Lines:     parseHunkBody(hunk.Body),
			})
		}
		files = append(files, fd)
	}
	return files, nil
}

func parseHunkBody(body []byte) []patch.Line {
	lines := make([]patch.Line, 0, 16)
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			// Some diffs emit empty context lines without the leading space.
			lines = append(lines, patch.Line{Kind: patch.Context})
			continue
		}
		switch line[0] {
		case '+':
			lines = append(lines, patch.Line{Kind: patch.Added, Text: line[1:]})
		case '-':
			lines = append(lines, patch.Line{Kind: patch.Removed, Text: line[1:]})
		case '\\':
			// "\ No newline at end of file"
		default:
			lines = append(lines, patch.Line{Kind: patch.Context, Text: line[1:]})
		}
	}
	return lines
}

func ignored(path string, patterns []string) bool {
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, path)
		if err == nil && match {
			return true
		}
	}
	return false
}
