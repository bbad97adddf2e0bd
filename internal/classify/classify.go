// Package classify talks to the remote classification service that decides
// which commit every changed line belongs to. The engine itself never
// second-guesses these decisions; it only accounts for them.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/splintergit/splinter/pkg/patch"
)

// Classifier produces the ordered commit plan with per-line assignments,
// and repairs patches the apply step rejected.
type Classifier interface {
	Plan(ctx context.Context, files []*patch.FileDiff, maxCommits int) (*patch.Plan, error)
	RepairPatch(ctx context.Context, originalDiff, failing string, index int) (string, error)
}

// Client is a Classifier backed by an OpenAI-compatible chat completions
// endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type planResponse struct {
	Commits []struct {
		ID          string `json:"id"`
		Message     string `json:"message"`
		Description string `json:"description"`
	} `json:"commits"`
	Assignments []struct {
		Hunk   string `json:"hunk"`
		Line   int    `json:"line"`
		Commit string `json:"commit"`
	} `json:"assignments"`
}

// Plan asks the service for an ordered commit plan covering every changed
// line of the diff.
func (c *Client) Plan(ctx context.Context, files []*patch.FileDiff, maxCommits int) (*patch.Plan, error) {
	content, err := c.complete(ctx, planSystemPrompt(maxCommits), RenderDiff(files))
	if err != nil {
		return nil, err
	}
	var resp planResponse
	if err := json.Unmarshal([]byte(extractJSON(content)), &resp); err != nil {
		return nil, fmt.Errorf("classifier returned malformed plan: %w", err)
	}
	if len(resp.Commits) == 0 {
		return nil, fmt.Errorf("classifier returned no commits")
	}
	plan := &patch.Plan{
		Commits:     make([]patch.Commit, 0, len(resp.Commits)),
		Assignments: make(patch.Classification, len(resp.Assignments)),
	}
	for _, commit := range resp.Commits {
		if commit.ID == "" {
			return nil, fmt.Errorf("classifier returned a commit without an id")
		}
		plan.Commits = append(plan.Commits, patch.Commit{
			ID:          commit.ID,
			Message:     commit.Message,
			Description: commit.Description,
		})
	}
	for _, a := range resp.Assignments {
		plan.Assignments[patch.LineKey{HunkID: a.Hunk, Index: a.Line}] = a.Commit
	}
	return plan, nil
}

// RepairPatch hands a rejected patch back to the service together with the
// original diff for context and returns the corrected patch text.
func (c *Client) RepairPatch(ctx context.Context, originalDiff, failing string, index int) (string, error) {
	user := fmt.Sprintf("Original diff:\n```diff\n%s```\n\nPatch %d of the sequence was rejected by git apply:\n```diff\n%s```\n", originalDiff, index+1, failing)
	content, err := c.complete(ctx, repairSystemPrompt, user)
	if err != nil {
		return "", err
	}
	repaired := extractFence(content)
	if strings.TrimSpace(repaired) == "" {
		return "", fmt.Errorf("classifier returned an empty repaired patch")
	}
	if !strings.HasSuffix(repaired, "\n") {
		repaired += "\n"
	}
	return repaired, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	defer httpResp.Body.Close()
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", err
	}
	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("classification response is not JSON (status %d): %w", httpResp.StatusCode, err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("classification service error: %s", resp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classification service returned status %d", httpResp.StatusCode)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classification service returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON pulls the JSON object out of a response that may wrap it in a
// markdown fence or surrounding prose.
func extractJSON(s string) string {
	if fenced := extractFence(s); fenced != s {
		s = fenced
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// extractFence returns the content of the first markdown code fence, or the
// input unchanged when there is none.
func extractFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		return rest[:end]
	}
	return s
}
