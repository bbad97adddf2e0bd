package git

import (
	"fmt"
	"strings"
)

// EmptyTree is the well-known hash of git's empty tree, used as the diff
// base when a revision has no parent.
const EmptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// DirtyWorktreeError means the working tree has uncommitted changes and is
// not safe to split onto.
type DirtyWorktreeError struct{}

func (e DirtyWorktreeError) Error() string {
	return "working tree has uncommitted changes"
}

// CommitInfo is the resolved identity of one revision.
type CommitInfo struct {
	SHA     string
	Subject string
}

// Repo answers revision questions about one local repository.
type Repo struct {
	dir      string
	executor gitCommandExecutor
}

func NewRepo(dir string) *Repo {
	return &Repo{dir: dir, executor: newRealGitExecutor(dir)}
}

// ResolveCommit resolves a revision to its SHA and subject line.
func (r *Repo) ResolveCommit(rev string) (*CommitInfo, error) {
	sha, err := r.executor.execute("git", "rev-parse", "--verify", rev+"^{commit}")
	if err != nil {
		return nil, fmt.Errorf("cannot resolve revision %s: %w", rev, err)
	}
	subject, err := r.executor.execute("git", "log", "-1", "--format=%s", rev)
	if err != nil {
		return nil, fmt.Errorf("cannot read subject of %s: %w", rev, err)
	}
	return &CommitInfo{
		SHA:     strings.TrimSpace(string(sha)),
		Subject: strings.TrimSpace(string(subject)),
	}, nil
}

// Parent returns rev's first parent, or EmptyTree for a root commit.
func (r *Repo) Parent(rev string) string {
	sha, err := r.executor.execute("git", "rev-parse", "--verify", rev+"~1^{commit}")
	if err != nil {
		return EmptyTree
	}
	return strings.TrimSpace(string(sha))
}

// MergeBase returns the merge base of two revisions.
func (r *Repo) MergeBase(a, b string) (string, error) {
	out, err := r.executor.execute("git", "merge-base", a, b)
	if err != nil {
		return "", fmt.Errorf("git merge-base %s %s: %w", a, b, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsClean reports whether the working tree has no uncommitted changes.
func (r *Repo) IsClean() (bool, error) {
	out, err := r.executor.execute("git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return len(strings.TrimSpace(string(out))) == 0, nil
}

// CreateBranch creates and checks out a branch starting at the given
// revision.
func (r *Repo) CreateBranch(name, at string) error {
	if _, err := r.executor.execute("git", "switch", "-c", name, at); err != nil {
		return fmt.Errorf("creating branch %s at %s: %w", name, at, err)
	}
	return nil
}
