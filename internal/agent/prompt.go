package agent

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompt budgets. The full diff is capped so one giant revision cannot
// blow the context window; file contents get a smaller per-file cap.
const (
	maxDiffChars = 24000
	maxFileChars = 4000
)

// lineConvention tells the model how to read the numbered diff and cite
// line numbers. The marker format here must agree exactly with
// diff.Numbered; an off-by-one corrupts every downstream attribution.
const lineConvention = `Each added or unchanged line in the diff below is prefixed with its
post-change line number as "NEW_LINE_<n>: ". Removed lines start with "-"
and have no number. When you report an issue, the "line" field must be the
<n> from the marker of the offending line.

Worked example. Given:
NEW_LINE_41: +  color: red !important;
an issue about that line is reported as:
[{"file": "src/button.css", "line": 41, "severity": "medium",
"message": "Avoid !important; raise selector specificity instead.",
"suggestion": "Use .toolbar .button { color: red; }", "confidence": 0.9}]

Respond with ONLY a JSON array of issues in that shape (empty array if
none). code_snippet may replace line when the exact line is unclear.`

// Topic describes one review topic's prompt material. Topics can be
// overridden per deployment by YAML files, same shape as this struct.
type Topic struct {
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
	Guidance     string `yaml:"guidance"`
}

// LoadTopic reads a topic override from a YAML file.
func LoadTopic(path string) (*Topic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topic file: %w", err)
	}
	var t Topic
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing topic file %s: %w", path, err)
	}
	if t.Name == "" || t.SystemPrompt == "" {
		return nil, fmt.Errorf("topic file %s: name and system_prompt are required", path)
	}
	return &t, nil
}

// buildUserPrompt assembles the bounded review prompt for one topic.
func buildUserPrompt(t Topic, in Input) string {
	var b strings.Builder

	if in.Metadata.Title != "" {
		fmt.Fprintf(&b, "Revision: %s - %s\n", in.Diff.RevisionID, in.Metadata.Title)
	} else {
		fmt.Fprintf(&b, "Revision: %s\n", in.Diff.RevisionID)
	}
	if in.Metadata.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", truncate(in.Metadata.Summary, 800))
	}

	b.WriteString("\nChanged files:\n")
	for _, f := range in.Files {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	b.WriteString("\n" + t.Guidance + "\n")
	b.WriteString("\n" + lineConvention + "\n")

	b.WriteString("\nDiff:\n")
	b.WriteString(truncate(in.Diff.Numbered(), maxDiffChars))

	if len(in.Contents) > 0 {
		b.WriteString("\n\nFull file contents (truncated):\n")
		paths := make([]string, 0, len(in.Contents))
		for p := range in.Contents {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", p, truncate(in.Contents[p], maxFileChars))
		}
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
