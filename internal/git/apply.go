package git

import (
	"fmt"
)

// Applier applies assembled patches to the working tree and commits them,
// one commit per patch.
type Applier struct {
	dir      string
	executor gitCommandExecutor
}

func NewApplier(dir string) *Applier {
	return &Applier{dir: dir, executor: newRealGitExecutor(dir)}
}

// Check runs git apply --check against a patch file without touching the
// tree.
func (a *Applier) Check(patchPath string) error {
	if _, err := a.executor.execute("git", "apply", "--check", patchPath); err != nil {
		return fmt.Errorf("patch %s does not apply: %w", patchPath, err)
	}
	return nil
}

// Apply applies a patch file to the working tree and the index.
func (a *Applier) Apply(patchPath string) error {
	if _, err := a.executor.execute("git", "apply", "--index", patchPath); err != nil {
		return fmt.Errorf("applying %s: %w", patchPath, err)
	}
	return nil
}

// Commit commits the staged changes. The description becomes the commit
// body when nonempty.
func (a *Applier) Commit(message, description string) error {
	args := []string{"commit", "-m", message}
	if description != "" {
		args = append(args, "-m", description)
	}
	if _, err := a.executor.execute("git", args...); err != nil {
		return fmt.Errorf("committing %q: %w", message, err)
	}
	return nil
}
