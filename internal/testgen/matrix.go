// Package testgen builds a test coverage matrix from a diff and generates
// unit test cases for it.
package testgen

import (
	"regexp"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sprite-ai/revmcp/internal/diff"
	"github.com/sprite-ai/revmcp/internal/model"
)

// Scenario categories.
const (
	CategoryHappyPath   = "happy-path"
	CategoryEdgeCase    = "edge-case"
	CategoryErrorPath   = "error-path"
	CategoryStateChange = "state-change"
)

// ProjectConfig describes the project under test.
type ProjectConfig struct {
	Framework string `json:"framework"` // e.g. "jest"
	TestDir   string `json:"test_dir"`  // relative dir for generated tests, "" = alongside source
}

// Feature is one testable unit touched by the diff.
type Feature struct {
	File string `json:"file"`
	Name string `json:"name"`
	Kind string `json:"kind"` // component, hook, function
}

// Scenario is one test scenario for a feature.
type Scenario struct {
	File     string `json:"file"`
	Feature  string `json:"feature"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Cases    int    `json:"cases"`
}

// Summary aggregates the matrix. EstimatedTests counts every scenario at
// a minimum of one test case.
type Summary struct {
	TotalFeatures  int            `json:"total_features"`
	TotalScenarios int            `json:"total_scenarios"`
	ByCategory     map[string]int `json:"by_category"`
	EstimatedTests int            `json:"estimated_tests"`
}

// Matrix is the analysis result for one revision.
type Matrix struct {
	RevisionID string     `json:"revision_id"`
	Features   []Feature  `json:"features"`
	Scenarios  []Scenario `json:"scenarios"`
	Summary    Summary    `json:"summary"`
}

var (
	funcDecl  = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s+([A-Za-z_$][\w$]*)`)
	arrowDecl = regexp.MustCompile(`^(?:export\s+)?const\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?(?:\(|[A-Za-z_$][\w$]*\s*=>)`)

	conditional = regexp.MustCompile(`\b(?:if|switch)\b|\?[^.:]*:`)
	errorPath   = regexp.MustCompile(`\b(?:try|catch|throw|finally)\b|\.catch\(|Promise\.reject`)
	stateChange = regexp.MustCompile(`\buse(?:State|Reducer)\b|setState|this\.state`)
)

var testableExts = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true, ".vue": true,
}

// Analyze derives the coverage matrix from the added lines of a diff.
// The analysis is deterministic: the same diff always yields the same
// matrix, independent of where it runs (the worker-fallback contract in
// runner.go depends on this).
func Analyze(d *diff.Diff, cfg ProjectConfig) *Matrix {
	m := &Matrix{RevisionID: d.RevisionID}

	for _, f := range d.Files {
		if f.ChangeType == model.ChangeDeleted || f.IsBinary || !testableExts[ext(f.Path)] {
			continue
		}

		added := addedLines(f)
		if len(added) == 0 {
			continue
		}

		features := detectFeatures(f.Path, added)
		if len(features) == 0 {
			// Changed file with no named declarations still gets a
			// file-level feature so edits to existing code are covered.
			features = []Feature{{File: f.Path, Name: baseName(f.Path), Kind: "function"}}
		}
		m.Features = append(m.Features, features...)

		joined := strings.Join(added, "\n")
		for _, feat := range features {
			m.Scenarios = append(m.Scenarios, Scenario{
				File: f.Path, Feature: feat.Name,
				Name:     feat.Name + " works with expected input",
				Category: CategoryHappyPath, Cases: 1,
			})
			if n := len(conditional.FindAllString(joined, -1)); n > 0 {
				m.Scenarios = append(m.Scenarios, Scenario{
					File: f.Path, Feature: feat.Name,
					Name:     feat.Name + " handles boundary conditions",
					Category: CategoryEdgeCase, Cases: clampCases(n),
				})
			}
			if errorPath.MatchString(joined) {
				m.Scenarios = append(m.Scenarios, Scenario{
					File: f.Path, Feature: feat.Name,
					Name:     feat.Name + " surfaces failures",
					Category: CategoryErrorPath, Cases: 1,
				})
			}
			if stateChange.MatchString(joined) {
				m.Scenarios = append(m.Scenarios, Scenario{
					File: f.Path, Feature: feat.Name,
					Name:     feat.Name + " transitions state correctly",
					Category: CategoryStateChange, Cases: 1,
				})
			}
		}
	}

	m.Summary = Summarize(m.Features, m.Scenarios)
	return m
}

// Summarize is a pure aggregation over features and scenarios.
func Summarize(features []Feature, scenarios []Scenario) Summary {
	s := Summary{
		TotalFeatures:  len(features),
		TotalScenarios: len(scenarios),
		ByCategory:     make(map[string]int),
	}
	for _, sc := range scenarios {
		s.ByCategory[sc.Category]++
		cases := sc.Cases
		if cases < 1 {
			cases = 1
		}
		s.EstimatedTests += cases
	}
	return s
}

func detectFeatures(path string, added []string) []Feature {
	var features []Feature
	seen := make(map[string]bool)

	for _, line := range added {
		line = strings.TrimSpace(line)
		var name string
		if m := funcDecl.FindStringSubmatch(line); m != nil {
			name = m[1]
		} else if m := arrowDecl.FindStringSubmatch(line); m != nil {
			name = m[1]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		features = append(features, Feature{File: path, Name: name, Kind: featureKind(name)})
	}
	return features
}

func featureKind(name string) string {
	switch {
	case strings.HasPrefix(name, "use") && len(name) > 3 && name[3] >= 'A' && name[3] <= 'Z':
		return "hook"
	case name[0] >= 'A' && name[0] <= 'Z':
		return "component"
	default:
		return "function"
	}
}

func addedLines(f *diff.File) []string {
	var lines []string
	for _, frag := range f.Fragments {
		for _, line := range frag.Lines {
			if line.Op == gitdiff.OpAdd {
				lines = append(lines, strings.TrimSuffix(line.Line, "\n"))
			}
		}
	}
	return lines
}

func clampCases(n int) int {
	if n > 3 {
		return 3
	}
	return n
}

func ext(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i:]
	}
	return ""
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndex(path, "."); i > 0 {
		path = path[:i]
	}
	return path
}
