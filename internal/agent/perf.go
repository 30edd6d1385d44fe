package agent

import (
	"log/slog"

	"github.com/sprite-ai/revmcp/internal/llm"
)

// PerformanceTopic reviews changes for rendering and bundle performance.
var PerformanceTopic = Topic{
	Name: "performance",
	SystemPrompt: `You are a frontend performance engineer reviewing code
changes. Only report issues the diff itself introduces or makes worse.`,
	Guidance: `Look specifically for:
- work added inside render paths or tight loops (object/array literals,
  inline closures recreated per render)
- missing memoization where expensive computation was added
- synchronous layout thrash (reads of offsetWidth/getBoundingClientRect
  interleaved with style writes)
- large dependencies imported for small utilities
- unbounded lists rendered without virtualization
- animations of layout properties instead of transform/opacity`,
}

// NewPerformance creates the performance review agent.
func NewPerformance(completer llm.Completer, logger *slog.Logger) Agent {
	return New(PerformanceTopic, completer, logger)
}
