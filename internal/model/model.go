// Package model defines the core data types shared across revmcp.
package model

import "time"

// Severity categorizes how serious a review issue is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ParseSeverity maps free-form model output onto the severity enum.
// Unknown or empty values default to medium.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s)
	default:
		return SeverityMedium
	}
}

// Rank orders severities for sorting, critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// ChangeType describes what happened to a file in a diff.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// Metadata carries revision-level information from the source system.
type Metadata struct {
	Title   string `json:"title,omitempty"`
	Summary string `json:"summary,omitempty"`
	Author  string `json:"author,omitempty"`
	DiffID  string `json:"diff_id,omitempty"`
}

// Issue is a single review finding produced by a topic agent.
// The ID is a deterministic fingerprint of (file, line-or-snippet,
// topic, message) and serves as the dedup key across runs. An Issue is
// immutable after creation except for PublishedAt, set by the publish gate.
type Issue struct {
	ID          string     `json:"id"`
	File        string     `json:"file"`
	Line        int        `json:"line,omitempty"`
	CodeSnippet string     `json:"code_snippet,omitempty"`
	Severity    Severity   `json:"severity"`
	Topic       string     `json:"topic"`
	Message     string     `json:"message"`
	Suggestion  string     `json:"suggestion,omitempty"`
	Confidence  float64    `json:"confidence"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// TestCase is one generated unit test, keyed by (File, TestFile, Scenario).
// Multiple cases may share a physical TestFile at write time.
type TestCase struct {
	File       string  `json:"file"`
	TestFile   string  `json:"test_file"`
	Scenario   string  `json:"scenario"`
	Framework  string  `json:"framework"`
	Confidence float64 `json:"confidence"`
	Priority   int     `json:"priority"`
	Code       string  `json:"code"`
}

// ClampConfidence bounds a confidence value to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
