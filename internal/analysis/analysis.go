// Package analysis implements the deterministic static review pass. It
// scans added lines for frontend anti-patterns that need no model call,
// so its findings arrive even when the LLM is down and always with full
// confidence.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sprite-ai/revmcp/internal/agent"
	"github.com/sprite-ai/revmcp/internal/diff"
	"github.com/sprite-ai/revmcp/internal/fingerprint"
	"github.com/sprite-ai/revmcp/internal/model"
)

// TopicName is the agent name the static pass registers under.
const TopicName = "static"

// rule matches one anti-pattern on an added line.
type rule struct {
	pattern  *regexp.Regexp
	exts     map[string]bool // nil means any extension
	severity model.Severity
	message  string
}

var stylesheetExts = map[string]bool{".css": true, ".less": true, ".scss": true, ".sass": true}

var scriptExts = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true, ".vue": true,
}

var rules = []rule{
	{
		pattern:  regexp.MustCompile(`!important`),
		exts:     stylesheetExts,
		severity: model.SeverityMedium,
		message:  "!important declaration; raise selector specificity instead",
	},
	{
		pattern:  regexp.MustCompile(`(?i)\bdebugger\b`),
		exts:     scriptExts,
		severity: model.SeverityHigh,
		message:  "debugger statement left in",
	},
	{
		pattern:  regexp.MustCompile(`console\.(log|debug|trace)\(`),
		exts:     scriptExts,
		severity: model.SeverityMedium,
		message:  "console output left in",
	},
	{
		pattern:  regexp.MustCompile(`dangerouslySetInnerHTML`),
		exts:     scriptExts,
		severity: model.SeverityHigh,
		message:  "dangerouslySetInnerHTML; sanitize or avoid raw HTML injection",
	},
	{
		pattern:  regexp.MustCompile(`\beval\s*\(`),
		exts:     scriptExts,
		severity: model.SeverityCritical,
		message:  "eval() on dynamic input",
	},
	{
		pattern:  regexp.MustCompile(`\.catch\(\s*(?:_|\(\s*\))\s*=>\s*(?:\{\s*\}|null|undefined)`),
		exts:     scriptExts,
		severity: model.SeverityMedium,
		message:  "silently swallowed promise rejection",
	},
	{
		pattern:  regexp.MustCompile(`(?i)\b(TODO|FIXME|HACK|XXX)\b`),
		severity: model.SeverityLow,
		message:  "unresolved marker comment",
	},
}

// zIndexPattern needs its value checked, so it is not a plain rule.
var zIndexPattern = regexp.MustCompile(`z-index\s*:\s*(\d+)`)

const maxReasonableZIndex = 1000

// Agent is the static analysis pass behind the agent contract.
type Agent struct {
	logger *slog.Logger
}

// New creates the static review agent.
func New(logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{logger: logger}
}

// Name implements agent.Agent.
func (a *Agent) Name() string { return TopicName }

// Execute scans every added line of the diff against the rule set. The
// pass is deterministic, so confidence is always 1.
func (a *Agent) Execute(ctx context.Context, in agent.Input) agent.Result {
	if in.Diff == nil {
		return agent.Result{}
	}

	var issues []model.Issue
	for _, f := range in.Diff.Files {
		if f.ChangeType == model.ChangeDeleted || f.IsBinary {
			continue
		}
		issues = append(issues, scanFile(f)...)
	}

	a.logger.Debug("static pass finished",
		"revision", in.Diff.RevisionID, "issues", len(issues))
	return agent.Result{Items: issues, Confidence: 1}
}

func scanFile(f *diff.File) []model.Issue {
	ext := strings.ToLower(filepath.Ext(f.Path))

	var issues []model.Issue
	for _, frag := range f.Fragments {
		line := int(frag.NewPosition)
		for _, l := range frag.Lines {
			switch l.Op {
			case gitdiff.OpAdd:
				issues = append(issues, scanLine(f.Path, ext, line, l.Line)...)
				line++
			case gitdiff.OpContext:
				line++
			}
		}
	}
	return issues
}

func scanLine(path, ext string, line int, text string) []model.Issue {
	var issues []model.Issue

	for _, r := range rules {
		if r.exts != nil && !r.exts[ext] {
			continue
		}
		if !r.pattern.MatchString(text) {
			continue
		}
		issues = append(issues, newIssue(path, line, r.severity, r.message, text))
	}

	if stylesheetExts[ext] {
		if m := zIndexPattern.FindStringSubmatch(text); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > maxReasonableZIndex {
				issues = append(issues, newIssue(path, line, model.SeverityMedium,
					fmt.Sprintf("z-index %d is an escalation; use a layering scale", v), text))
			}
		}
	}

	return issues
}

func newIssue(path string, line int, sev model.Severity, message, text string) model.Issue {
	return model.Issue{
		ID:          fingerprint.Issue(path, line, line, TopicName, message),
		File:        path,
		Line:        line,
		CodeSnippet: strings.TrimSpace(strings.TrimSuffix(text, "\n")),
		Severity:    sev,
		Topic:       TopicName,
		Message:     message,
		Confidence:  1,
	}
}
