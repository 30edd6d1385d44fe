// Package app wires configuration, storage, sources, the model provider,
// and the review agents into one explicit dependency container. Handlers
// receive an *App; there is no package-level singleton, so tests can build
// as many isolated instances as they like.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sprite-ai/revmcp/internal/agent"
	"github.com/sprite-ai/revmcp/internal/analysis"
	"github.com/sprite-ai/revmcp/internal/cache"
	"github.com/sprite-ai/revmcp/internal/config"
	"github.com/sprite-ai/revmcp/internal/diff"
	"github.com/sprite-ai/revmcp/internal/llm"
	"github.com/sprite-ai/revmcp/internal/model"
	"github.com/sprite-ai/revmcp/internal/publish"
	"github.com/sprite-ai/revmcp/internal/source"
	"github.com/sprite-ai/revmcp/internal/state"
	"github.com/sprite-ai/revmcp/internal/testgen"
)

// App holds every long-lived dependency of the server.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Cache  *cache.Cache
	State  *state.Store
	Source *source.Resolver
	LLM    llm.Completer
	Agents *agent.Registry
	Gate   *publish.Gate

	phab *source.Phabricator
}

// New builds a fully wired App from config. Construction fails fast on
// anything that would make the server useless at runtime (bad credentials
// are caught by config.Validate before this point).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c, err := cache.Open(cfg.Cache.Path, cfg.DiffTTL(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	st, err := state.Open(cfg.State.Path)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	completer, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model, logger)
	if err != nil {
		_ = c.Close()
		_ = st.Close()
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Cache:  c,
		State:  st,
		LLM:    completer,
		Gate:   publish.NewGate(st, cfg.Review.SimilarityThreshold, logger),
	}

	a.Source = &source.Resolver{Git: source.NewGit(cfg.Git.RepoDir)}
	if cfg.Phabricator.URL != "" {
		a.phab = source.NewPhabricator(cfg.Phabricator.URL, cfg.Phabricator.Token, cfg.PhabricatorTimeout())
		a.Source.Phabricator = a.phab
	}

	a.Agents = agent.NewRegistry()
	for _, name := range cfg.Review.Topics {
		if name == analysis.TopicName {
			a.Agents.Register(analysis.New(logger))
			continue
		}
		topic, err := resolveTopic(name, cfg.Review.TopicDir)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		t := *topic
		a.Agents.RegisterFactory(t.Name, func() agent.Agent {
			return agent.New(t, completer, logger)
		})
	}

	return a, nil
}

var builtinTopics = map[string]agent.Topic{
	"css":           agent.CSSTopic,
	"accessibility": agent.AccessibilityTopic,
	"performance":   agent.PerformanceTopic,
}

// resolveTopic finds the prompt material for a topic name. A YAML file in
// the topic dir overrides (or introduces) a topic; otherwise the name must
// be a builtin.
func resolveTopic(name, dir string) (*agent.Topic, error) {
	if dir != "" {
		path := filepath.Join(dir, name+".yaml")
		if _, err := os.Stat(path); err == nil {
			return agent.LoadTopic(path)
		}
	}
	if t, ok := builtinTopics[name]; ok {
		return &t, nil
	}
	return nil, fmt.Errorf("unknown review topic %q and no override file", name)
}

// cachedDiff is the cache representation of a fetched diff. Only the raw
// text and metadata are stored; the parsed form is rebuilt on read, so the
// cache never pins parser internals.
type cachedDiff struct {
	Raw      string         `json:"raw"`
	Metadata model.Metadata `json:"metadata"`
}

// FetchDiff returns the parsed diff for a revision, from cache when fresh.
// forceRefresh skips the cache read but still updates the cache, so the
// next call sees the refreshed diff.
func (a *App) FetchDiff(ctx context.Context, id string, forceRefresh bool) (*diff.Diff, error) {
	key := "diff:" + id

	if !forceRefresh {
		var cd cachedDiff
		ok, err := a.Cache.GetJSON(key, &cd)
		if err != nil {
			a.Logger.Warn("cache read failed, fetching fresh", "key", key, "error", err)
		}
		if ok {
			a.Logger.Debug("diff cache hit", "revision", id)
			return diff.Parse(cd.Raw, id, cd.Metadata, a.Logger), nil
		}
	}

	client := a.Source.For(id)
	if client == nil {
		return nil, fmt.Errorf("no source configured for %q", id)
	}

	raw, err := client.FetchDiff(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching diff %s: %w", id, err)
	}

	meta, err := client.FetchMetadata(ctx, id)
	if err != nil {
		// Metadata enriches prompts but is not load-bearing.
		a.Logger.Warn("fetching metadata failed", "revision", id, "error", err)
		meta = model.Metadata{}
	}

	if err := a.Cache.SetJSON(key, cachedDiff{Raw: raw, Metadata: meta}, 0); err != nil {
		a.Logger.Warn("caching diff failed", "revision", id, "error", err)
	}

	return diff.Parse(raw, id, meta, a.Logger), nil
}

// InvalidateDiff drops the cached diff for a revision. Returns how many
// entries were removed.
func (a *App) InvalidateDiff(id string) (int, error) {
	return a.Cache.Invalidate("diff:" + id)
}

// Review is the aggregated outcome of one review run.
type Review struct {
	RunID      string             `json:"run_id"`
	RevisionID string             `json:"revision_id"`
	Issues     []model.Issue      `json:"issues"`
	Confidence map[string]float64 `json:"confidence"` // per topic
	Files      int                `json:"files"`
	Additions  int                `json:"additions"`
	Deletions  int                `json:"deletions"`
}

// Review fetches the revision's diff and fans it out to the requested
// topic agents (nil means every configured topic). Issues come back sorted
// by severity, then file and line, so the most serious findings lead.
func (a *App) Review(ctx context.Context, id string, topics []string, forceRefresh bool) (*Review, error) {
	d, err := a.FetchDiff(ctx, id, forceRefresh)
	if err != nil {
		return nil, err
	}

	reg := a.Agents
	if len(topics) > 0 {
		reg = agent.NewRegistry()
		for _, name := range topics {
			ag, ok := a.Agents.Get(name)
			if !ok {
				return nil, fmt.Errorf("unknown topic %q (configured: %s)",
					name, strings.Join(a.Agents.Names(), ", "))
			}
			reg.Register(ag)
		}
	}

	in := agent.Input{Diff: d, Files: d.Paths(), Metadata: d.Metadata}
	results := reg.RunAll(ctx, in, a.Logger)

	rev := &Review{
		RunID:      uuid.NewString(),
		RevisionID: id,
		Confidence: make(map[string]float64, len(results)),
	}
	for topic, res := range results {
		rev.Confidence[topic] = res.Confidence
		rev.Issues = append(rev.Issues, res.Items...)
	}

	sort.SliceStable(rev.Issues, func(i, j int) bool {
		x, y := rev.Issues[i], rev.Issues[j]
		if x.Severity.Rank() != y.Severity.Rank() {
			return x.Severity.Rank() < y.Severity.Rank()
		}
		if x.File != y.File {
			return x.File < y.File
		}
		return x.Line < y.Line
	})

	rev.Files, rev.Additions, rev.Deletions = d.Stats()

	a.Logger.Info("review finished",
		"run_id", rev.RunID, "revision", id,
		"topics", len(results), "issues", len(rev.Issues))
	return rev, nil
}

// Publish runs the dedup gate over candidates and posts the survivors as
// comments. dryRun records state without posting. Posting requires a
// Phabricator revision; for git refs only dry runs make sense.
func (a *App) Publish(ctx context.Context, revision string, issues []model.Issue, dryRun bool) (*publish.Outcome, error) {
	var poster publish.Poster
	if !dryRun {
		if !source.IsPhabricatorID(revision) {
			return nil, fmt.Errorf("publishing comments requires a Phabricator revision id, got %q", revision)
		}
		if a.phab == nil {
			return nil, fmt.Errorf("phabricator is not configured")
		}
		poster = phabPoster{phab: a.phab}
	}
	return a.Gate.Publish(ctx, revision, issues, poster)
}

type phabPoster struct {
	phab *source.Phabricator
}

func (p phabPoster) Post(ctx context.Context, revision string, iss model.Issue) error {
	return p.phab.PostComment(ctx, revision, FormatComment(iss))
}

// FormatComment renders one issue as a Remarkup comment body.
func FormatComment(iss model.Issue) string {
	loc := iss.File
	if iss.Line > 0 {
		loc = fmt.Sprintf("%s:%d", iss.File, iss.Line)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**[%s/%s]** `%s`\n%s", iss.Topic, iss.Severity, loc, iss.Message)
	if iss.Suggestion != "" {
		fmt.Fprintf(&b, "\n\nSuggestion: %s", iss.Suggestion)
	}
	return b.String()
}

// AnalyzeTestMatrix builds the test coverage matrix for a revision, going
// through the worker when one is configured.
func (a *App) AnalyzeTestMatrix(ctx context.Context, id string, forceRefresh bool) (*testgen.Matrix, error) {
	d, err := a.FetchDiff(ctx, id, forceRefresh)
	if err != nil {
		return nil, err
	}
	cfg := testgen.ProjectConfig{Framework: a.Config.TestGen.Framework}
	return a.testRunner().Analyze(ctx, d, cfg)
}

func (a *App) testRunner() testgen.Runner {
	if len(a.Config.TestGen.WorkerCommand) == 0 {
		return testgen.Direct{}
	}
	return &testgen.Fallback{
		Worker: &testgen.Worker{
			Command: a.Config.TestGen.WorkerCommand,
			Timeout: a.Config.WorkerTimeout(),
			Logger:  a.Logger,
		},
		Logger: a.Logger,
	}
}

// GenerateTests analyzes the revision and asks the model for test code
// covering the matrix's scenarios, optionally filtered by category.
func (a *App) GenerateTests(ctx context.Context, id string, categories []string, maxTests int, forceRefresh bool) ([]model.TestCase, *testgen.Matrix, error) {
	m, err := a.AnalyzeTestMatrix(ctx, id, forceRefresh)
	if err != nil {
		return nil, nil, err
	}

	var scenarios []testgen.Scenario
	if len(categories) > 0 {
		want := make(map[string]bool, len(categories))
		for _, c := range categories {
			want[c] = true
		}
		scenarios = make([]testgen.Scenario, 0, len(m.Scenarios))
		for _, sc := range m.Scenarios {
			if want[sc.Category] {
				scenarios = append(scenarios, sc)
			}
		}
	}

	if maxTests <= 0 {
		maxTests = a.Config.TestGen.MaxTests
	}

	cases := testgen.Generate(ctx, a.LLM, m, scenarios, maxTests, a.Logger)
	return cases, m, nil
}

// WriteTests writes generated cases under root and returns the paths.
func (a *App) WriteTests(root string, cases []model.TestCase) ([]string, error) {
	written, err := testgen.WriteFiles(root, cases)
	if err != nil {
		return written, err
	}
	a.Logger.Info("test files written", "root", root, "files", len(written))
	return written, nil
}

// Close releases storage handles.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.State != nil {
		errs = append(errs, a.State.Close())
	}
	return errors.Join(errs...)
}
