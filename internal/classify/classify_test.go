package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/splintergit/splinter/pkg/patch"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected system and user messages, got %d", len(req.Messages))
		}
		resp := chatResponse{}
		resp.Choices = []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: content}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

var sampleFiles = []*patch.FileDiff{{
	Path: "a.go",
	Hunks: []*patch.Hunk{{
		ID:        "a.go#0",
		OrigStart: 1, OrigLines: 1, NewStart: 1, NewLines: 2,
		Lines: []patch.Line{
			{Kind: patch.Context, Text: "ctx"},
			{Kind: patch.Added, Text: "added"},
		},
	}},
}}

func TestPlan(t *testing.T) {
	planJSON := "```json\n" + `{
  "commits": [
    {"id": "c1", "message": "add feature", "description": "details"},
    {"id": "c2", "message": "cleanup"}
  ],
  "assignments": [
    {"hunk": "a.go#0", "line": 1, "commit": "c1"}
  ]
}` + "\n```"
	server := chatServer(t, "Here is the plan:\n"+planJSON)
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	plan, err := client.Plan(context.Background(), sampleFiles, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Commits) != 2 || plan.Commits[0].ID != "c1" || plan.Commits[1].Message != "cleanup" {
		t.Errorf("commits parsed wrong: %+v", plan.Commits)
	}
	if plan.Commits[0].Description != "details" {
		t.Errorf("description parsed wrong: %+v", plan.Commits[0])
	}
	got := plan.Assignments[patch.LineKey{HunkID: "a.go#0", Index: 1}]
	if got != "c1" {
		t.Errorf("assignment parsed wrong: %q", got)
	}
}

func TestPlanRejectsBadResponses(t *testing.T) {
	tt := []struct {
		name    string
		content string
	}{
		{"no commits", `{"commits": [], "assignments": []}`},
		{"commit without id", `{"commits": [{"message": "x"}], "assignments": []}`},
		{"not json", "I cannot help with that."},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			server := chatServer(t, tc.content)
			defer server.Close()
			client := NewClient(server.URL, "test-key", "test-model")
			if _, err := client.Plan(context.Background(), sampleFiles, 0); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPlanServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	_, err := client.Plan(context.Background(), sampleFiles, 0)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected the service error to surface, got %v", err)
	}
}

func TestRepairPatch(t *testing.T) {
	repaired := "--- a/f.txt\n+++ b/f.txt\n@@ -1,1 +1,1 @@\n-a\n+b\n"
	server := chatServer(t, "Fixed:\n```diff\n"+repaired+"```")
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	got, err := client.RepairPatch(context.Background(), "original diff", "broken patch", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != repaired {
		t.Errorf("expected repaired patch %q, got %q", repaired, got)
	}
}

func TestRenderDiff(t *testing.T) {
	out := RenderDiff(sampleFiles)
	for _, want := range []string{
		"=== a.go\n",
		"hunk a.go#0 @@ -1,1 +1,2 @@",
		"a.go#0:1 +added",
		"  ctx\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered diff missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "a.go#0:0") {
		t.Error("context lines must not carry assignment indexes")
	}
}

func TestExtractJSON(t *testing.T) {
	tt := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounded by prose", "Sure!\n{\"a\": 1}\nHope this helps.", `{"a": 1}`},
		{"no object", "nothing here", "nothing here"},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSON(tc.input); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
