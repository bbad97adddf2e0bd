// Package app wires the collaborators together: diff acquisition,
// classification, partitioning, reconstruction, and the optional apply
// step.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/splintergit/splinter/internal/classify"
	"github.com/splintergit/splinter/internal/config"
	"github.com/splintergit/splinter/internal/diffgen"
	"github.com/splintergit/splinter/internal/git"
	gh "github.com/splintergit/splinter/internal/github"
	f "github.com/splintergit/splinter/pkg/functional"
	"github.com/splintergit/splinter/pkg/patch"
	"github.com/splintergit/splinter/pkg/split"
)

// Config holds the application configuration.
type Config struct {
	Dir           string
	Rev           string
	PR            int
	Repo          string
	Token         string
	OutDir        string
	Apply         bool
	PlanOnly      bool
	Verbose       bool
	InfoBuffer    io.Writer
	WarningBuffer io.Writer
}

// CommitResult describes one assembled commit of the split.
type CommitResult struct {
	ID          string   `json:"id"`
	Message     string   `json:"message"`
	Description string   `json:"description,omitempty"`
	Files       []string `json:"files"`
	PatchFile   string   `json:"patch_file,omitempty"`
	Applied     bool     `json:"applied"`
}

// OutputData is the machine-readable result of a run.
type OutputData struct {
	Base    string         `json:"base"`
	Head    string         `json:"head"`
	Branch  string         `json:"branch,omitempty"`
	Commits []CommitResult `json:"commits"`
	Errors  []string       `json:"errors,omitempty"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
}

// gitRepo is the revision surface App needs from internal/git.
type gitRepo interface {
	ResolveCommit(rev string) (*git.CommitInfo, error)
	Parent(rev string) string
	MergeBase(a, b string) (string, error)
	IsClean() (bool, error)
	CreateBranch(name, at string) error
}

// patchApplier applies and commits one patch file at a time.
type patchApplier interface {
	Check(patchPath string) error
	Apply(patchPath string) error
	Commit(message, description string) error
}

// App represents the application with its dependencies. The collaborator
// fields are interfaces so tests can swap them.
type App struct {
	Conf       *config.Config
	config     *Config
	classifier classify.Classifier
	repo       gitRepo
	applier    patchApplier

	newDiff     func(git.DiffContext) (git.Diff, error)
	newReader   func(ref, dir string) split.ContentReader
	newGHClient func(owner, repo, token string) gh.Client
}

// New creates a new App instance with the given configuration.
func New(cfg Config) (*App, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("repository directory not set")
	}
	if cfg.Rev == "" {
		cfg.Rev = "HEAD"
	}
	if cfg.InfoBuffer == nil {
		cfg.InfoBuffer = io.Discard
	}
	if cfg.WarningBuffer == nil {
		cfg.WarningBuffer = io.Discard
	}
	return &App{
		config:  &cfg,
		repo:    git.NewRepo(cfg.Dir),
		applier: git.NewApplier(cfg.Dir),
		newDiff: git.NewDiff,
		newReader: func(ref, dir string) split.ContentReader {
			return git.NewRefReader(ref, dir)
		},
		newGHClient: gh.NewClient,
	}, nil
}

func (a *App) printDebug(format string, args ...interface{}) {
	if a.config.Verbose {
		_, _ = fmt.Fprintf(a.config.InfoBuffer, format, args...)
	}
}

func (a *App) printWarn(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(a.config.WarningBuffer, format, args...)
}

// Run executes the split pipeline.
func (a *App) Run(ctx context.Context) (*OutputData, error) {
	conf, err := config.ReadConfig(a.config.Dir)
	if err != nil {
		a.printWarn("Error reading splinter.toml - using default config\n")
	}
	a.Conf = conf

	base, head, err := a.resolveRange()
	if err != nil {
		return &OutputData{}, err
	}
	out := &OutputData{Base: base, Head: head, Commits: []CommitResult{}}

	a.printDebug("Getting diff for %s..%s\n", base, head)
	gitDiff, err := a.newDiff(git.DiffContext{
		Base:   base,
		Head:   head,
		Dir:    a.config.Dir,
		Ignore: conf.Ignore,
	})
	if err != nil {
		return out, fmt.Errorf("NewDiff Error: %v", err)
	}
	files := gitDiff.Files()
	if len(files) == 0 {
		out.Success = true
		out.Message = "nothing to split"
		return out, nil
	}
	a.printDebug("Changed files: %v\n", f.Map(files, func(fd *patch.FileDiff) string { return fd.Path }))

	plan, err := a.getClassifier().Plan(ctx, files, conf.MaxCommits)
	if err != nil {
		return out, fmt.Errorf("Classify Error: %v", err)
	}
	a.printDebug("Plan has %d commits\n", len(plan.Commits))

	changes, err := split.Partition(files, plan.Commits, plan.Assignments, split.Options{Strict: conf.Strict})
	if err != nil {
		return out, fmt.Errorf("Partition Error: %v", err)
	}
	if valid, verrs := split.Validate(files, changes); !valid {
		out.Errors = verrs
		out.Message = "partition validation failed"
		return out, fmt.Errorf("partition validation failed: %s", strings.Join(verrs, "; "))
	}

	if a.config.PlanOnly {
		for _, cc := range changes {
			out.Commits = append(out.Commits, commitResult(cc, ""))
		}
		out.Success = true
		out.Message = fmt.Sprintf("planned %d commits", len(changes))
		return out, nil
	}

	patches, err := split.Assemble(files, changes, a.newReader(base, a.config.Dir), diffgen.Generator{Context: conf.ContextLines})
	if err != nil {
		return out, fmt.Errorf("Assemble Error: %v", err)
	}

	written, err := a.writePatches(changes, patches, out)
	if err != nil {
		return out, err
	}

	if a.config.Apply {
		if err := a.applyAll(ctx, gitDiff, written, out); err != nil {
			return out, err
		}
	}

	out.Success = true
	out.Message = fmt.Sprintf("split into %d commits", len(out.Commits))
	return out, nil
}

// resolveRange determines the diff endpoints: the parent and SHA of the
// target revision, or the merge base and head of a PR.
func (a *App) resolveRange() (base, head string, err error) {
	if a.config.PR > 0 {
		repoSplit := strings.Split(a.config.Repo, "/")
		if len(repoSplit) != 2 {
			return "", "", fmt.Errorf("invalid repo name: %s", a.config.Repo)
		}
		client := a.newGHClient(repoSplit[0], repoSplit[1], a.config.Token)
		if err := client.InitPR(a.config.PR); err != nil {
			return "", "", fmt.Errorf("InitPR Error: %v", err)
		}
		baseSHA, err := client.BaseSHA()
		if err != nil {
			return "", "", err
		}
		headSHA, err := client.HeadSHA()
		if err != nil {
			return "", "", err
		}
		mergeBase, err := a.repo.MergeBase(baseSHA, headSHA)
		if err != nil {
			return "", "", err
		}
		return mergeBase, headSHA, nil
	}

	info, err := a.repo.ResolveCommit(a.config.Rev)
	if err != nil {
		return "", "", err
	}
	a.printDebug("Splitting %s (%s)\n", info.SHA, info.Subject)
	return a.repo.Parent(info.SHA), info.SHA, nil
}

func (a *App) getClassifier() classify.Classifier {
	if a.classifier == nil {
		a.classifier = classify.NewClient(a.Conf.BaseURL, os.Getenv(a.Conf.APIKeyEnv), a.Conf.Model)
	}
	return a.classifier
}

// writePatches runs the syntactic patch check and writes each nonempty
// patch to the output directory. Empty patches mean a commit made no net
// change; they are skipped with a warning, not treated as errors.
func (a *App) writePatches(changes []*patch.CommitChanges, patches []*patch.AssembledPatch, out *OutputData) ([]string, error) {
	outDir := a.config.OutDir
	if outDir == "" {
		outDir = filepath.Join(a.config.Dir, ".splinter")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %v", err)
	}

	written := make([]string, 0, len(patches))
	for i, p := range patches {
		if err := diffgen.CheckPatch(p.Patch); err != nil {
			if strings.TrimSpace(p.Patch) == "" {
				a.printWarn("WARNING: commit %s has no net changes - skipped\n", p.Commit.ID)
				continue
			}
			return nil, fmt.Errorf("patch for commit %s is malformed: %v", p.Commit.ID, err)
		}
		name := fmt.Sprintf("%04d-%s.patch", i+1, sanitizeName(p.Commit.ID))
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, []byte(p.Patch), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %v", path, err)
		}
		a.printDebug("Wrote %s\n", path)
		written = append(written, path)
		out.Commits = append(out.Commits, commitResult(changes[i], path))
	}
	return written, nil
}

// applyAll applies the written patches in order, one commit per patch, on a
// fresh branch at the diff base. A patch git rejects is handed to the
// classifier for one repair attempt before giving up.
func (a *App) applyAll(ctx context.Context, gitDiff git.Diff, written []string, out *OutputData) error {
	clean, err := a.repo.IsClean()
	if err != nil {
		return err
	}
	if !clean {
		return git.DirtyWorktreeError{}
	}

	short := out.Head
	if len(short) > 8 {
		short = short[:8]
	}
	branch := a.Conf.BranchPrefix + short
	if err := a.repo.CreateBranch(branch, out.Base); err != nil {
		return err
	}
	out.Branch = branch

	for i, path := range written {
		if err := a.applier.Check(path); err != nil {
			a.printWarn("WARNING: patch %s rejected, requesting repair\n", path)
			if err := a.repairPatch(ctx, gitDiff, path, i); err != nil {
				return err
			}
		}
		if err := a.applier.Apply(path); err != nil {
			return err
		}
		commit := out.Commits[i]
		if err := a.applier.Commit(commit.Message, commit.Description); err != nil {
			return err
		}
		out.Commits[i].Applied = true
		a.printDebug("Applied and committed %s\n", commit.ID)
	}
	return nil
}

func (a *App) repairPatch(ctx context.Context, gitDiff git.Diff, path string, index int) error {
	failing, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	repaired, err := a.getClassifier().RepairPatch(ctx, gitDiff.Raw(), string(failing), index)
	if err != nil {
		return fmt.Errorf("RepairPatch Error: %v", err)
	}
	if err := diffgen.CheckPatch(repaired); err != nil {
		return fmt.Errorf("repaired patch is malformed: %v", err)
	}
	if err := os.WriteFile(path, []byte(repaired), 0o644); err != nil {
		return err
	}
	return a.applier.Check(path)
}

func commitResult(cc *patch.CommitChanges, patchFile string) CommitResult {
	return CommitResult{
		ID:          cc.Commit.ID,
		Message:     cc.Commit.Message,
		Description: cc.Commit.Description,
		Files:       f.Map(cc.Files, func(fc patch.FileChanges) string { return fc.Path }),
		PatchFile:   patchFile,
	}
}

func sanitizeName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	return sb.String()
}
