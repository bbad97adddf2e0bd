package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/splintergit/splinter/internal/app"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func ignoreError[V any, E error](res V, _ E) V {
	return res
}

var (
	WarningBuffer = bytes.NewBuffer([]byte{})
	InfoBuffer    = bytes.NewBuffer([]byte{})
)

var (
	rev      = flag.String("rev", getEnv("SPLINTER_REV", "HEAD"), "Revision to split")
	repoDir  = flag.String("dir", getEnv("SPLINTER_DIR", "."), "Path to local Git repo")
	pr       = flag.Int("pr", ignoreError(strconv.Atoi(getEnv("SPLINTER_PR", ""))), "Pull Request number to split instead of a revision")
	ghRepo   = flag.String("repo", getEnv("SPLINTER_REPOSITORY", ""), "GitHub repo name (owner/name), required with -pr")
	ghToken  = flag.String("token", getEnv("SPLINTER_GITHUB_TOKEN", ""), "GitHub authentication token for -pr")
	outDir   = flag.String("out", getEnv("SPLINTER_OUT", ""), "Directory to write patches to")
	apply    = flag.Bool("apply", false, "Apply the patches as a commit sequence on a new branch")
	planOnly = flag.Bool("plan", false, "Stop after classification and validation")
	asJSON   = flag.Bool("json", false, "Print the run result as JSON")
	verbose  = flag.Bool("v", ignoreError(strconv.ParseBool(getEnv("SPLINTER_VERBOSE", "0"))), "Verbose output")
)

// shouldFail should always be true for errors that are not recoverable
func errorAndExit(shouldFail bool, format string, args ...interface{}) {
	_, err := WarningBuffer.WriteTo(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing warning buffer: %v\n", err)
	}
	if *verbose {
		_, err := InfoBuffer.WriteTo(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing info buffer: %v\n", err)
		}
	}
	fmt.Fprintf(os.Stderr, format, args...)
	if shouldFail {
		os.Exit(1)
	} else {
		os.Exit(0)
	}
}

func main() {
	flag.Parse()
	if *pr != 0 && *ghRepo == "" {
		errorAndExit(true, "-repo is required when splitting a pull request\n")
	}
	a, err := app.New(app.Config{
		Dir:           *repoDir,
		Rev:           *rev,
		PR:            *pr,
		Repo:          *ghRepo,
		Token:         *ghToken,
		OutDir:        *outDir,
		Apply:         *apply,
		PlanOnly:      *planOnly,
		Verbose:       *verbose,
		InfoBuffer:    InfoBuffer,
		WarningBuffer: WarningBuffer,
	})
	if err != nil {
		errorAndExit(true, "Error: %v\n", err)
	}

	out, err := a.Run(context.Background())
	if err != nil {
		for _, e := range out.Errors {
			fmt.Fprintf(WarningBuffer, "ERROR: %s\n", e)
		}
		errorAndExit(true, "%v\n", err)
	}

	_, werr := WarningBuffer.WriteTo(os.Stderr)
	if werr != nil {
		fmt.Fprintf(os.Stderr, "Error writing warning buffer: %v\n", werr)
	}
	if *verbose {
		_, werr = InfoBuffer.WriteTo(os.Stdout)
		if werr != nil {
			fmt.Fprintf(os.Stderr, "Error writing info buffer: %v\n", werr)
		}
	}

	if *asJSON {
		encoded, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			errorAndExit(true, "Error encoding output: %v\n", err)
		}
		fmt.Println(string(encoded))
		return
	}
	for _, c := range out.Commits {
		status := " "
		if c.Applied {
			status = "*"
		}
		fmt.Printf("%s %s: %s (%d files)\n", status, c.ID, c.Message, len(c.Files))
	}
	fmt.Println(out.Message)
}
