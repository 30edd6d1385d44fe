package agent

import (
	"log/slog"

	"github.com/sprite-ai/revmcp/internal/llm"
)

// CSSTopic reviews stylesheet changes.
var CSSTopic = Topic{
	Name: "css",
	SystemPrompt: `You are a senior frontend engineer reviewing CSS, Less,
and SCSS changes. You care about maintainability and correctness, not
formatting nits. Report real problems only; when unsure, lower the
confidence instead of inventing certainty.`,
	Guidance: `Look specifically for:
- !important declarations and specificity wars
- hardcoded colors, sizes, or z-index values that should be design tokens
- selectors coupled to DOM structure (deep descendant chains)
- vendor prefixes for properties with full browser support
- removed rules that other selectors may have depended on
- layout changes (position, float, flex/grid) with side effects outside the
  changed component
Severity: "critical" only for changes that visibly break layout, "high" for
likely regressions, "medium" for maintainability problems, "low" for style
concerns.`,
}

// NewCSS creates the CSS review agent.
func NewCSS(completer llm.Completer, logger *slog.Logger) Agent {
	return New(CSSTopic, completer, logger)
}
