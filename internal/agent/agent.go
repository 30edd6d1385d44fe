// Package agent implements the topic review agents. Each agent wraps one
// LLM call with a topic-specific prompt, parses the model's JSON reply into
// issues, corrects file paths against the changed-file list, and
// fingerprints every issue for dedup.
package agent

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/revmcp/internal/diff"
	"github.com/sprite-ai/revmcp/internal/model"
)

// Input is everything an agent needs to review one revision.
type Input struct {
	Diff     *diff.Diff
	Files    []string // post-change paths of every changed file
	Contents map[string]string
	Metadata model.Metadata
}

// Result is one agent's verdict. Agents never return errors: an LLM or
// parse failure degrades to zero items with confidence 0, so one broken
// topic cannot abort the overall review.
type Result struct {
	Items      []model.Issue `json:"items"`
	Confidence float64       `json:"confidence"`
}

// Agent reviews a diff for one topic.
type Agent interface {
	Name() string
	Execute(ctx context.Context, in Input) Result
}

// Factory defers agent construction until first use.
type Factory func() Agent

type registryEntry struct {
	agent   Agent
	factory Factory
}

// Registry holds agents keyed by name. Entries may be ready instances or
// deferred factories; the first lookup materializes a factory and replaces
// the entry, behind one lock so concurrent lookups are safe.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds a ready agent instance.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[a.Name()] = &registryEntry{agent: a}
}

// RegisterFactory adds a deferred constructor under name.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &registryEntry{factory: f}
}

// Get returns the agent for name, materializing a deferred entry.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	if e.agent == nil {
		e.agent = e.factory()
		e.factory = nil
	}
	return e.agent, true
}

// Names returns all registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunAll executes every registered agent concurrently and returns results
// keyed by agent name. Agents share no mutable state, so the fan-out needs
// no locking beyond assembling the result map.
func (r *Registry) RunAll(ctx context.Context, in Input, logger *slog.Logger) map[string]Result {
	if logger == nil {
		logger = slog.Default()
	}

	names := r.Names()
	results := make([]Result, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		agent, ok := r.Get(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			results[i] = agent.Execute(gctx, in)
			logger.Debug("agent finished",
				"agent", name, "issues", len(results[i].Items), "confidence", results[i].Confidence)
			return nil
		})
	}
	_ = g.Wait() // agents never return errors

	out := make(map[string]Result, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}
