package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sprite-ai/revmcp/internal/agent"
	"github.com/sprite-ai/revmcp/internal/cache"
	"github.com/sprite-ai/revmcp/internal/config"
	"github.com/sprite-ai/revmcp/internal/model"
	"github.com/sprite-ai/revmcp/internal/publish"
	"github.com/sprite-ai/revmcp/internal/source"
	"github.com/sprite-ai/revmcp/internal/state"
)

const sampleDiff = `diff --git a/src/button.css b/src/button.css
index abc1234..def5678 100644
--- a/src/button.css
+++ b/src/button.css
@@ -10,2 +10,3 @@
 .button {
+  color: red !important;
 }
`

// countingSource serves a fixed diff and counts fetches.
type countingSource struct {
	fetches int
	err     error
}

func (s *countingSource) FetchDiff(ctx context.Context, id string) (string, error) {
	s.fetches++
	if s.err != nil {
		return "", s.err
	}
	return sampleDiff, nil
}

func (s *countingSource) FetchMetadata(ctx context.Context, id string) (model.Metadata, error) {
	return model.Metadata{Title: "Make button red"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testApp(t *testing.T, src source.Client) *App {
	t.Helper()

	dir := t.TempDir()
	c, err := cache.Open(filepath.Join(dir, "cache.db"), time.Minute, quietLogger())
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	st, err := state.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("opening state: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
		_ = st.Close()
	})

	cfg, _ := config.Load("")
	return &App{
		Config: cfg,
		Logger: quietLogger(),
		Cache:  c,
		State:  st,
		Source: &source.Resolver{Git: src},
		Agents: agent.NewRegistry(),
		Gate:   publish.NewGate(st, 0, quietLogger()),
	}
}

func TestFetchDiffCaches(t *testing.T) {
	src := &countingSource{}
	a := testApp(t, src)
	ctx := context.Background()

	d, err := a.FetchDiff(ctx, "abc123", false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(d.Files) != 1 || d.Metadata.Title != "Make button red" {
		t.Fatalf("unexpected diff: %+v", d)
	}
	if src.fetches != 1 {
		t.Fatalf("expected 1 fetch, got %d", src.fetches)
	}

	// Second call is served from cache.
	if _, err := a.FetchDiff(ctx, "abc123", false); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if src.fetches != 1 {
		t.Errorf("cache miss on repeat fetch: %d fetches", src.fetches)
	}

	// forceRefresh bypasses the read but repopulates the cache.
	if _, err := a.FetchDiff(ctx, "abc123", true); err != nil {
		t.Fatalf("forced fetch: %v", err)
	}
	if src.fetches != 2 {
		t.Errorf("forceRefresh should hit the source, got %d fetches", src.fetches)
	}
	if _, err := a.FetchDiff(ctx, "abc123", false); err != nil {
		t.Fatalf("fetch after refresh: %v", err)
	}
	if src.fetches != 2 {
		t.Errorf("refresh should rewrite the cache, got %d fetches", src.fetches)
	}
}

func TestFetchDiffSourceError(t *testing.T) {
	a := testApp(t, &countingSource{err: errors.New("unreachable")})
	if _, err := a.FetchDiff(context.Background(), "abc123", false); err == nil {
		t.Fatal("source failure must surface as an error")
	}
}

func TestInvalidateDiff(t *testing.T) {
	src := &countingSource{}
	a := testApp(t, src)
	ctx := context.Background()

	if _, err := a.FetchDiff(ctx, "abc123", false); err != nil {
		t.Fatal(err)
	}
	n, err := a.InvalidateDiff("abc123")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 invalidated entry, got %d", n)
	}
	if _, err := a.FetchDiff(ctx, "abc123", false); err != nil {
		t.Fatal(err)
	}
	if src.fetches != 2 {
		t.Errorf("invalidated entry should refetch, got %d fetches", src.fetches)
	}
}

// staticAgent returns a canned result.
type staticAgent struct {
	name   string
	result agent.Result
}

func (s staticAgent) Name() string { return s.name }
func (s staticAgent) Execute(ctx context.Context, in agent.Input) agent.Result {
	return s.result
}

func TestReviewAggregatesAndSorts(t *testing.T) {
	a := testApp(t, &countingSource{})
	a.Agents.Register(staticAgent{name: "css", result: agent.Result{
		Confidence: 0.9,
		Items: []model.Issue{
			{ID: "f1", File: "src/button.css", Line: 11, Severity: model.SeverityLow, Topic: "css", Message: "low issue"},
			{ID: "f2", File: "src/button.css", Line: 11, Severity: model.SeverityCritical, Topic: "css", Message: "critical issue"},
		},
	}})
	a.Agents.Register(staticAgent{name: "performance", result: agent.Result{Confidence: 0.7}})

	rev, err := a.Review(context.Background(), "abc123", nil, false)
	if err != nil {
		t.Fatalf("review: %v", err)
	}

	if rev.RunID == "" || rev.RevisionID != "abc123" {
		t.Errorf("missing run identity: %+v", rev)
	}
	if len(rev.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(rev.Issues))
	}
	if rev.Issues[0].Severity != model.SeverityCritical {
		t.Errorf("critical issue should sort first, got %s", rev.Issues[0].Severity)
	}
	if rev.Confidence["css"] != 0.9 || rev.Confidence["performance"] != 0.7 {
		t.Errorf("per-topic confidence lost: %+v", rev.Confidence)
	}
	if rev.Files != 1 || rev.Additions != 1 {
		t.Errorf("diff stats missing: %+v", rev)
	}
}

func TestReviewUnknownTopic(t *testing.T) {
	a := testApp(t, &countingSource{})
	a.Agents.Register(staticAgent{name: "css"})

	if _, err := a.Review(context.Background(), "abc123", []string{"nope"}, false); err == nil {
		t.Fatal("unknown topic must be an error")
	}
}

func TestReviewTopicSubset(t *testing.T) {
	a := testApp(t, &countingSource{})
	a.Agents.Register(staticAgent{name: "css", result: agent.Result{
		Confidence: 0.9,
		Items:      []model.Issue{{ID: "f1", File: "a.css", Message: "m", Topic: "css"}},
	}})
	a.Agents.Register(staticAgent{name: "performance", result: agent.Result{
		Confidence: 0.8,
		Items:      []model.Issue{{ID: "f2", File: "a.js", Message: "n", Topic: "performance"}},
	}})

	rev, err := a.Review(context.Background(), "abc123", []string{"css"}, false)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(rev.Issues) != 1 || rev.Issues[0].Topic != "css" {
		t.Errorf("subset should run only requested topics: %+v", rev.Issues)
	}
	if _, ok := rev.Confidence["performance"]; ok {
		t.Error("unrequested topic leaked into results")
	}
}

func TestPublishDryRunRecordsState(t *testing.T) {
	a := testApp(t, &countingSource{})
	iss := model.Issue{ID: "fp-1", File: "a.css", Line: 3, Message: "dup me", Topic: "css"}

	out, err := a.Publish(context.Background(), "D42", []model.Issue{iss}, true)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(out.Published) != 1 {
		t.Fatalf("expected 1 published, got %+v", out)
	}

	// Dry run still arms the dedup gate.
	again, err := a.Publish(context.Background(), "D42", []model.Issue{iss}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Skipped) != 1 || len(again.Published) != 0 {
		t.Errorf("repeat publish should be skipped: %+v", again)
	}
}

func TestPublishGitRefRejected(t *testing.T) {
	a := testApp(t, &countingSource{})
	_, err := a.Publish(context.Background(), "abc123", []model.Issue{{ID: "x", File: "a", Message: "m"}}, false)
	if err == nil {
		t.Fatal("posting to a git ref must fail")
	}
}

func TestFormatComment(t *testing.T) {
	iss := model.Issue{
		File: "src/button.css", Line: 11,
		Severity: model.SeverityHigh, Topic: "css",
		Message:    "Avoid !important.",
		Suggestion: "Raise selector specificity.",
	}
	got := FormatComment(iss)
	for _, want := range []string{"css/high", "src/button.css:11", "Avoid !important.", "Suggestion: Raise selector specificity."} {
		if !strings.Contains(got, want) {
			t.Errorf("comment missing %q:\n%s", want, got)
		}
	}
}

func TestGenerateTestsCategoryFilterMatchesNothing(t *testing.T) {
	a := testApp(t, &countingSource{})
	a.LLM = failingCompleter{} // must never be called

	cases, m, err := a.GenerateTests(context.Background(), "abc123", []string{"no-such-category"}, 0, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if m == nil {
		t.Fatal("matrix should still be returned")
	}
	if len(cases) != 0 {
		t.Errorf("no scenarios selected, expected no cases: %+v", cases)
	}
}

type failingCompleter struct{}

func (failingCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("completer must not be called")
}

func TestResolveTopic(t *testing.T) {
	if _, err := resolveTopic("css", ""); err != nil {
		t.Errorf("builtin topic: %v", err)
	}
	if _, err := resolveTopic("nope", ""); err == nil {
		t.Error("unknown topic without override must fail")
	}

	dir := t.TempDir()
	override := "name: security\nsystem_prompt: Review for security problems.\n"
	if err := os.WriteFile(filepath.Join(dir, "security.yaml"), []byte(override), 0644); err != nil {
		t.Fatal(err)
	}
	topic, err := resolveTopic("security", dir)
	if err != nil {
		t.Fatalf("override topic: %v", err)
	}
	if topic.Name != "security" {
		t.Errorf("unexpected topic: %+v", topic)
	}
}
