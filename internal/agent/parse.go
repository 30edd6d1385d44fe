package agent

import (
	"encoding/json"
	"log/slog"
	"path"
	"strings"

	"github.com/sprite-ai/revmcp/internal/fingerprint"
	"github.com/sprite-ai/revmcp/internal/model"
)

// rawIssue is the shape we ask the model to emit. Confidence is a pointer
// so an absent field can be distinguished from an explicit zero.
type rawIssue struct {
	File        string   `json:"file"`
	Line        int      `json:"line"`
	CodeSnippet string   `json:"code_snippet"`
	Severity    string   `json:"severity"`
	Message     string   `json:"message"`
	Suggestion  string   `json:"suggestion"`
	Confidence  *float64 `json:"confidence"`
}

const defaultConfidence = 0.7

// parseIssues turns a model reply into validated issues. The reply may be
// wrapped in a code fence or surrounded by prose; we extract the first
// JSON-array-shaped substring, fall back to the whole body, and on failure
// return ok=false (logged, never an error). ok=false means the reply was
// unparseable, as opposed to a well-formed empty review.
func parseIssues(reply, topic string, files []string, logger *slog.Logger) ([]model.Issue, bool) {
	raw, ok := decodeIssueArray(reply)
	if !ok {
		logger.Warn("unparseable agent reply, dropping", "topic", topic, "reply_len", len(reply))
		return nil, false
	}

	var issues []model.Issue
	for _, ri := range raw {
		file := correctPath(ri.File, files)
		if file == "" || strings.TrimSpace(ri.Message) == "" {
			// File and message are both mandatory for a publishable issue.
			continue
		}

		confidence := defaultConfidence
		if ri.Confidence != nil {
			confidence = model.ClampConfidence(*ri.Confidence)
		}

		iss := model.Issue{
			File:        file,
			Line:        ri.Line,
			CodeSnippet: ri.CodeSnippet,
			Severity:    model.ParseSeverity(ri.Severity),
			Topic:       topic,
			Message:     strings.TrimSpace(ri.Message),
			Suggestion:  strings.TrimSpace(ri.Suggestion),
			Confidence:  confidence,
		}

		if iss.Line > 0 {
			iss.ID = fingerprint.Issue(iss.File, iss.Line, iss.Line, topic, iss.Message)
		} else {
			iss.ID = fingerprint.Snippet(iss.File, iss.CodeSnippet, topic, iss.Message)
		}

		issues = append(issues, iss)
	}
	return issues, true
}

// decodeIssueArray tries progressively looser extractions of a JSON array.
func decodeIssueArray(reply string) ([]rawIssue, bool) {
	reply = stripFence(reply)

	if start, end := strings.Index(reply, "["), strings.LastIndex(reply, "]"); start >= 0 && end > start {
		var raw []rawIssue
		if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err == nil {
			return raw, true
		}
	}

	var raw []rawIssue
	if err := json.Unmarshal([]byte(reply), &raw); err == nil && reply != "null" {
		return raw, true
	}
	return nil, false
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// stylesheet extensions the model commonly confuses with one another.
var styleExts = []string{".css", ".less", ".scss", ".sass"}

// correctPath matches a model-reported path against the actual changed
// files: exact match first, then basename, then stylesheet extension
// variants. Unmatched paths return "" and the issue is dropped, never
// guessed.
func correctPath(reported string, files []string) string {
	reported = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(reported, "b/"), "a/"))
	if reported == "" {
		return ""
	}

	for _, f := range files {
		if f == reported {
			return f
		}
	}

	base := path.Base(reported)
	for _, f := range files {
		if path.Base(f) == base {
			return f
		}
	}

	if ext := path.Ext(reported); isStyleExt(ext) {
		stem := strings.TrimSuffix(base, ext)
		for _, f := range files {
			fExt := path.Ext(f)
			if isStyleExt(fExt) && strings.TrimSuffix(path.Base(f), fExt) == stem {
				return f
			}
		}
	}

	return ""
}

func isStyleExt(ext string) bool {
	for _, e := range styleExts {
		if ext == e {
			return true
		}
	}
	return false
}

// meanConfidence aggregates per-issue confidences. An empty issue list
// yields the neutral default rather than zero, so an empty-but-uncertain
// result stays distinguishable from a hard failure.
func meanConfidence(issues []model.Issue) float64 {
	if len(issues) == 0 {
		return defaultConfidence
	}
	var sum float64
	for _, iss := range issues {
		sum += iss.Confidence
	}
	return sum / float64(len(issues))
}
