package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-github/v63/github"

	"github.com/splintergit/splinter/internal/git"
	gh "github.com/splintergit/splinter/internal/github"
	"github.com/splintergit/splinter/pkg/patch"
	"github.com/splintergit/splinter/pkg/split"
)

type fakeRepo struct {
	clean    bool
	branch   string
	branchAt string
}

func (r *fakeRepo) ResolveCommit(rev string) (*git.CommitInfo, error) {
	return &git.CommitInfo{SHA: "headsha12345", Subject: "big commit"}, nil
}
func (r *fakeRepo) Parent(rev string) string { return "basesha" }
func (r *fakeRepo) MergeBase(a, b string) (string, error) {
	return "mergebase", nil
}
func (r *fakeRepo) IsClean() (bool, error) { return r.clean, nil }
func (r *fakeRepo) CreateBranch(name, at string) error {
	r.branch, r.branchAt = name, at
	return nil
}

type fakeApplier struct {
	checkFailures int
	checked       []string
	applied       []string
	committed     []string
}

func (a *fakeApplier) Check(path string) error {
	a.checked = append(a.checked, path)
	if a.checkFailures > 0 {
		a.checkFailures--
		return errors.New("corrupt patch")
	}
	return nil
}
func (a *fakeApplier) Apply(path string) error {
	a.applied = append(a.applied, path)
	return nil
}
func (a *fakeApplier) Commit(message, description string) error {
	a.committed = append(a.committed, message)
	return nil
}

type fakeDiff struct {
	files   []*patch.FileDiff
	context git.DiffContext
}

func (d *fakeDiff) Files() []*patch.FileDiff { return d.files }
func (d *fakeDiff) Raw() string              { return "raw diff" }
func (d *fakeDiff) Context() git.DiffContext { return d.context }

type fakeClassifier struct {
	plan     *patch.Plan
	repaired string
}

func (c *fakeClassifier) Plan(ctx context.Context, files []*patch.FileDiff, maxCommits int) (*patch.Plan, error) {
	return c.plan, nil
}
func (c *fakeClassifier) RepairPatch(ctx context.Context, originalDiff, failing string, index int) (string, error) {
	return c.repaired, nil
}

type fakeReader struct {
	files map[string]string
}

func (r fakeReader) ReadFile(path string) ([]byte, error) { return []byte(r.files[path]), nil }
func (r fakeReader) PathExists(path string) bool {
	_, ok := r.files[path]
	return ok
}

func testFiles() []*patch.FileDiff {
	return []*patch.FileDiff{{
		Path: "a.txt",
		Hunks: []*patch.Hunk{{
			ID:        "a.txt#0",
			OrigStart: 1, OrigLines: 2, NewStart: 1, NewLines: 2,
			Lines: []patch.Line{
				{Kind: patch.Removed, Text: "x"},
				{Kind: patch.Added, Text: "X"},
				{Kind: patch.Context, Text: "y"},
			},
		}},
	}}
}

func testPlan() *patch.Plan {
	return &patch.Plan{
		Commits: []patch.Commit{{ID: "c1", Message: "replace x"}},
		Assignments: patch.Classification{
			{HunkID: "a.txt#0", Index: 0}: "c1",
			{HunkID: "a.txt#0", Index: 1}: "c1",
		},
	}
}

func newTestApp(t *testing.T, cfg Config, classifier *fakeClassifier, files []*patch.FileDiff) (*App, *fakeRepo, *fakeApplier) {
	t.Helper()
	cfg.InfoBuffer = io.Discard
	cfg.WarningBuffer = io.Discard
	repo := &fakeRepo{clean: true}
	applier := &fakeApplier{}
	a := &App{
		config:     &cfg,
		classifier: classifier,
		repo:       repo,
		applier:    applier,
		newDiff: func(dc git.DiffContext) (git.Diff, error) {
			return &fakeDiff{files: files, context: dc}, nil
		},
		newReader: func(ref, dir string) split.ContentReader {
			return fakeReader{files: map[string]string{"a.txt": "x\ny\n"}}
		},
		newGHClient: func(owner, repo, token string) gh.Client {
			t.Fatal("GitHub client should not be used without -pr")
			return nil
		},
	}
	return a, repo, applier
}

func TestRunWritesPatches(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "patches")
	a, _, _ := newTestApp(t, Config{
		Dir:    dir,
		Rev:    "HEAD",
		OutDir: outDir,
	}, &fakeClassifier{plan: testPlan()}, testFiles())

	out, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success {
		t.Errorf("run should succeed: %+v", out)
	}
	if out.Base != "basesha" || out.Head != "headsha12345" {
		t.Errorf("range resolved wrong: %+v", out)
	}
	if len(out.Commits) != 1 || out.Commits[0].ID != "c1" {
		t.Fatalf("expected one commit result, got %+v", out.Commits)
	}
	if out.Commits[0].Applied {
		t.Error("commit must not be marked applied without -apply")
	}

	content, err := os.ReadFile(out.Commits[0].PatchFile)
	if err != nil {
		t.Fatalf("patch file not written: %v", err)
	}
	text := string(content)
	for _, want := range []string{"--- a/a.txt\n", "+++ b/a.txt\n", "-x\n", "+X\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("patch missing %q:\n%s", want, text)
		}
	}
}

func TestRunPlanOnly(t *testing.T) {
	a, _, applier := newTestApp(t, Config{
		Dir:      t.TempDir(),
		Rev:      "HEAD",
		PlanOnly: true,
	}, &fakeClassifier{plan: testPlan()}, testFiles())

	out, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success || len(out.Commits) != 1 {
		t.Errorf("plan-only should report the planned commits: %+v", out)
	}
	if out.Commits[0].PatchFile != "" {
		t.Error("plan-only must not write patches")
	}
	if len(applier.applied) != 0 {
		t.Error("plan-only must not apply anything")
	}
}

func TestRunNothingToSplit(t *testing.T) {
	a, _, _ := newTestApp(t, Config{
		Dir: t.TempDir(),
		Rev: "HEAD",
	}, &fakeClassifier{plan: testPlan()}, nil)

	out, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success || out.Message != "nothing to split" {
		t.Errorf("empty diff should short-circuit: %+v", out)
	}
}

func TestRunStrictUnclassifiedLine(t *testing.T) {
	// One changed line carries no assignment. Under strict the partition
	// must fail instead of falling back to the first commit.
	files := testFiles()
	files[0].Hunks[0].Lines = append(files[0].Hunks[0].Lines, patch.Line{Kind: patch.Added, Text: "extra"})

	dir := t.TempDir()
	a, _, _ := newTestApp(t, Config{Dir: dir, Rev: "HEAD"}, &fakeClassifier{plan: testPlan()}, files)
	if err := os.WriteFile(filepath.Join(dir, "splinter.toml"), []byte("strict = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := a.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error for the unclassified line under strict")
	}
	if !strings.Contains(err.Error(), "Partition Error") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunApply(t *testing.T) {
	dir := t.TempDir()
	a, repo, applier := newTestApp(t, Config{
		Dir:    dir,
		Rev:    "HEAD",
		OutDir: filepath.Join(dir, "patches"),
		Apply:  true,
	}, &fakeClassifier{plan: testPlan()}, testFiles())

	out, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.branch != "splinter/headsha1" || repo.branchAt != "basesha" {
		t.Errorf("branch created wrong: %q at %q", repo.branch, repo.branchAt)
	}
	if len(applier.applied) != 1 || len(applier.committed) != 1 {
		t.Errorf("expected one apply and one commit, got %+v", applier)
	}
	if applier.committed[0] != "replace x" {
		t.Errorf("commit message wrong: %q", applier.committed[0])
	}
	if !out.Commits[0].Applied {
		t.Error("commit should be marked applied")
	}
}

func TestRunApplyDirtyWorktree(t *testing.T) {
	dir := t.TempDir()
	a, repo, _ := newTestApp(t, Config{
		Dir:    dir,
		Rev:    "HEAD",
		OutDir: filepath.Join(dir, "patches"),
		Apply:  true,
	}, &fakeClassifier{plan: testPlan()}, testFiles())
	repo.clean = false

	_, err := a.Run(context.Background())
	var dirty git.DirtyWorktreeError
	if !errors.As(err, &dirty) {
		t.Errorf("expected DirtyWorktreeError, got %v", err)
	}
}

func TestRunApplyRepairsRejectedPatch(t *testing.T) {
	dir := t.TempDir()
	repaired := "--- a/a.txt\n+++ b/a.txt\n@@ -1,2 +1,2 @@\n-x\n+X\n y\n"
	a, _, applier := newTestApp(t, Config{
		Dir:    dir,
		Rev:    "HEAD",
		OutDir: filepath.Join(dir, "patches"),
		Apply:  true,
	}, &fakeClassifier{plan: testPlan(), repaired: repaired}, testFiles())
	applier.checkFailures = 1

	out, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("repair should recover the run: %v", err)
	}
	if !out.Commits[0].Applied {
		t.Error("commit should be applied after repair")
	}
	content, err := os.ReadFile(out.Commits[0].PatchFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != repaired {
		t.Error("patch file should hold the repaired patch")
	}
	if len(applier.checked) != 2 {
		t.Errorf("expected the initial check plus the repair re-check, got %d checks", len(applier.checked))
	}
}

func TestRunPRMode(t *testing.T) {
	var gotContext git.DiffContext
	repo := &fakeRepo{clean: true}
	a := &App{
		config: &Config{
			Dir:           t.TempDir(),
			PR:            7,
			Repo:          "acme/widgets",
			InfoBuffer:    io.Discard,
			WarningBuffer: io.Discard,
		},
		classifier: &fakeClassifier{plan: testPlan()},
		repo:       repo,
		applier:    &fakeApplier{},
		newDiff: func(dc git.DiffContext) (git.Diff, error) {
			gotContext = dc
			return &fakeDiff{files: nil, context: dc}, nil
		},
		newReader: func(ref, dir string) split.ContentReader {
			return fakeReader{}
		},
		newGHClient: func(owner, repoName, token string) gh.Client {
			if owner != "acme" || repoName != "widgets" {
				t.Errorf("repo parsed wrong: %s/%s", owner, repoName)
			}
			return &fakeGHClient{}
		},
	}

	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotContext.Base != "mergebase" || gotContext.Head != "prhead" {
		t.Errorf("PR range resolved wrong: %+v", gotContext)
	}
}

type fakeGHClient struct{}

func (c *fakeGHClient) InitPR(prID int) error    { return nil }
func (c *fakeGHClient) PR() *github.PullRequest  { return nil }
func (c *fakeGHClient) BaseSHA() (string, error) { return "prbase", nil }
func (c *fakeGHClient) HeadSHA() (string, error) { return "prhead", nil }
func (c *fakeGHClient) Title() (string, error)   { return "PR title", nil }
