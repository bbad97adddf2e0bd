package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/splintergit/splinter/internal/app"
	"github.com/splintergit/splinter/internal/git"
	f "github.com/splintergit/splinter/pkg/functional"
)

func runApp(c *cli.Context, planOnly bool) error {
	a, err := app.New(app.Config{
		Dir:           c.String("dir"),
		Rev:           c.String("rev"),
		PR:            c.Int("pr"),
		Repo:          c.String("repo"),
		Token:         c.String("token"),
		OutDir:        c.String("out"),
		Apply:         c.Bool("apply"),
		PlanOnly:      planOnly,
		Verbose:       c.Bool("verbose"),
		InfoBuffer:    os.Stderr,
		WarningBuffer: os.Stderr,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	out, err := a.Run(context.Background())
	if err != nil {
		for _, e := range out.Errors {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", e)
		}
		return cli.Exit(err.Error(), 1)
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println(string(encoded))
	return nil
}

func applyPatchDir(dir, patchDir string) error {
	entries, err := os.ReadDir(patchDir)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	names := f.Map(entries, func(e os.DirEntry) string { return e.Name() })
	names = f.Filtered(names, func(name string) bool {
		return strings.HasSuffix(name, ".patch")
	})
	sort.Strings(names)
	if len(names) == 0 {
		return cli.Exit(fmt.Sprintf("no .patch files in %s", patchDir), 1)
	}

	applier := git.NewApplier(dir)
	for _, name := range names {
		path := filepath.Join(patchDir, name)
		if err := applier.Check(path); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if err := applier.Apply(path); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		message := strings.TrimSuffix(name, ".patch")
		if err := applier.Commit(message, ""); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		fmt.Printf("applied %s\n", name)
	}
	return nil
}

func main() {
	commonFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Value:   ".",
			Usage:   "Path to local Git repo",
		},
		&cli.StringFlag{
			Name:    "rev",
			Aliases: []string{"r"},
			Value:   "HEAD",
			Usage:   "Revision to split",
		},
		&cli.IntFlag{
			Name:  "pr",
			Usage: "Pull Request number to split instead of a revision",
		},
		&cli.StringFlag{
			Name:  "repo",
			Usage: "GitHub repo name (owner/name), required with --pr",
		},
		&cli.StringFlag{
			Name:    "token",
			EnvVars: []string{"SPLINTER_GITHUB_TOKEN"},
			Usage:   "GitHub authentication token for --pr",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Directory to write patches to",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Verbose output",
		},
	}

	cliApp := &cli.App{
		Name:  "splinter",
		Usage: "Split a large commit into a sequence of atomic commits",
		Commands: []*cli.Command{
			{
				Name:    "split",
				Aliases: []string{"s"},
				Usage:   "Classify, partition, and write one patch per commit",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:    "apply",
						Aliases: []string{"a"},
						Usage:   "Apply the patches as a commit sequence on a new branch",
					},
				}, commonFlags...),
				Action: func(c *cli.Context) error {
					return runApp(c, false)
				},
			},
			{
				Name:    "plan",
				Aliases: []string{"p"},
				Usage:   "Stop after classification and validation, print the plan",
				Flags:   commonFlags,
				Action: func(c *cli.Context) error {
					return runApp(c, true)
				},
			},
			{
				Name:      "apply",
				Usage:     "Apply previously written patch files in order",
				ArgsUsage: "<patch-dir>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Value:   ".",
						Usage:   "Path to local Git repo",
					},
				},
				Action: func(c *cli.Context) error {
					patchDir := c.Args().First()
					if patchDir == "" {
						patchDir = filepath.Join(c.String("dir"), ".splinter")
					}
					return applyPatchDir(c.String("dir"), patchDir)
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
