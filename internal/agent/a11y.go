package agent

import (
	"log/slog"

	"github.com/sprite-ai/revmcp/internal/llm"
)

// AccessibilityTopic reviews markup and component changes for a11y issues.
var AccessibilityTopic = Topic{
	Name: "accessibility",
	SystemPrompt: `You are an accessibility specialist reviewing frontend
changes. Flag concrete WCAG violations introduced by the diff, not
pre-existing problems in unchanged code.`,
	Guidance: `Look specifically for:
- interactive elements without keyboard access (divs with onClick, missing
  tabindex/role)
- images and icon buttons without alternative text or aria-label
- removed or weakened focus styles (outline: none without replacement)
- color contrast reduced by the change
- form inputs without associated labels
- aria attributes that contradict the element's role`,
}

// NewAccessibility creates the accessibility review agent.
func NewAccessibility(completer llm.Completer, logger *slog.Logger) Agent {
	return New(AccessibilityTopic, completer, logger)
}
