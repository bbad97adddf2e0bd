package git

import (
	"fmt"
	"strings"
)

// RefReader reads file content as it was at a specific revision. It is the
// original-content provider for patch reconstruction: a path that did not
// exist at the revision reads as absent, which callers treat as empty.
type RefReader struct {
	ref      string
	dir      string
	executor gitCommandExecutor
}

func NewRefReader(ref string, dir string) *RefReader {
	return &RefReader{
		ref:      ref,
		dir:      dir,
		executor: newRealGitExecutor(dir),
	}
}

// ReadFile reads a file from the revision via git show.
func (r *RefReader) ReadFile(path string) ([]byte, error) {
	path = strings.TrimPrefix(path, "/")
	output, err := r.executor.execute("git", "show", fmt.Sprintf("%s:%s", r.ref, path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s from ref %s: %w", path, r.ref, err)
	}
	return output, nil
}

// PathExists checks whether the file exists at the revision.
func (r *RefReader) PathExists(path string) bool {
	path = strings.TrimPrefix(path, "/")
	_, err := r.executor.execute("git", "cat-file", "-e", fmt.Sprintf("%s:%s", r.ref, path))
	return err == nil
}
