// Package gh fetches pull request metadata so a PR's diff can be split
// from the local clone.
package gh

import (
	"context"
	"fmt"

	"github.com/google/go-github/v63/github"
)

type NoPRError struct{}

func (e NoPRError) Error() string {
	return "PR not initialized"
}

// Client is the subset of the GitHub API splinter needs.
type Client interface {
	InitPR(prID int) error
	PR() *github.PullRequest
	BaseSHA() (string, error)
	HeadSHA() (string, error)
	Title() (string, error)
}

type GHClient struct {
	ctx    context.Context
	owner  string
	repo   string
	client *github.Client
	pr     *github.PullRequest
}

func NewClient(owner, repo, token string) Client {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GHClient{
		ctx:    context.Background(),
		owner:  owner,
		repo:   repo,
		client: client,
	}
}

func (gh *GHClient) InitPR(prID int) error {
	pr, _, err := gh.client.PullRequests.Get(gh.ctx, gh.owner, gh.repo, prID)
	if err != nil {
		return fmt.Errorf("fetching PR %d: %w", prID, err)
	}
	gh.pr = pr
	return nil
}

func (gh *GHClient) PR() *github.PullRequest {
	return gh.pr
}

func (gh *GHClient) BaseSHA() (string, error) {
	if gh.pr == nil {
		return "", NoPRError{}
	}
	return gh.pr.Base.GetSHA(), nil
}

func (gh *GHClient) HeadSHA() (string, error) {
	if gh.pr == nil {
		return "", NoPRError{}
	}
	return gh.pr.Head.GetSHA(), nil
}

func (gh *GHClient) Title() (string, error) {
	if gh.pr == nil {
		return "", NoPRError{}
	}
	return gh.pr.GetTitle(), nil
}
