package testgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sprite-ai/revmcp/internal/llm"
	"github.com/sprite-ai/revmcp/internal/model"
)

const generateSystemPrompt = `You write unit tests for frontend code. You
are given a source file's changed scenarios and must produce one test per
scenario. Respond with ONLY a JSON array:
[{"scenario": "<scenario name>", "test_file": "<relative path>",
"framework": "jest", "code": "<complete test code>", "confidence": 0.9,
"priority": 1}]
Tests must be self-contained and import the unit under test by its path.`

type rawCase struct {
	Scenario   string   `json:"scenario"`
	TestFile   string   `json:"test_file"`
	Framework  string   `json:"framework"`
	Code       string   `json:"code"`
	Confidence *float64 `json:"confidence"`
	Priority   int      `json:"priority"`
}

// Generate produces test cases for the given scenarios (nil means every
// scenario in the matrix), at most maxTests (0 = unlimited). One LLM call
// per source file; a file whose reply cannot be parsed is skipped with a
// warning, never a failure.
func Generate(ctx context.Context, completer llm.Completer, m *Matrix, scenarios []Scenario, maxTests int, logger *slog.Logger) []model.TestCase {
	if logger == nil {
		logger = slog.Default()
	}
	if scenarios == nil {
		scenarios = m.Scenarios
	}
	if maxTests > 0 && len(scenarios) > maxTests {
		scenarios = scenarios[:maxTests]
	}

	byFile := make(map[string][]Scenario)
	var order []string
	for _, sc := range scenarios {
		if _, ok := byFile[sc.File]; !ok {
			order = append(order, sc.File)
		}
		byFile[sc.File] = append(byFile[sc.File], sc)
	}

	var cases []model.TestCase
	for _, file := range order {
		fileCases := generateForFile(ctx, completer, m.RevisionID, file, byFile[file], logger)
		cases = append(cases, fileCases...)
	}
	return cases
}

func generateForFile(ctx context.Context, completer llm.Completer, revision, file string, scenarios []Scenario, logger *slog.Logger) []model.TestCase {
	var b strings.Builder
	fmt.Fprintf(&b, "Revision: %s\nSource file: %s\n\nScenarios:\n", revision, file)
	for _, sc := range scenarios {
		fmt.Fprintf(&b, "- [%s] %s (feature: %s)\n", sc.Category, sc.Name, sc.Feature)
	}
	fmt.Fprintf(&b, "\nDefault test file: %s\n", defaultTestFile(file))

	reply, err := completer.Complete(ctx, generateSystemPrompt, b.String())
	if err != nil {
		logger.Warn("test generation call failed", "file", file, "error", err)
		return nil
	}

	raw, ok := decodeCaseArray(reply)
	if !ok {
		logger.Warn("unparseable test generation reply", "file", file, "reply_len", len(reply))
		return nil
	}

	var cases []model.TestCase
	for _, rc := range raw {
		if strings.TrimSpace(rc.Code) == "" || strings.TrimSpace(rc.Scenario) == "" {
			continue
		}
		confidence := 0.7
		if rc.Confidence != nil {
			confidence = model.ClampConfidence(*rc.Confidence)
		}
		testFile := rc.TestFile
		if testFile == "" {
			testFile = defaultTestFile(file)
		}
		framework := rc.Framework
		if framework == "" {
			framework = "jest"
		}
		cases = append(cases, model.TestCase{
			File:       file,
			TestFile:   testFile,
			Scenario:   rc.Scenario,
			Framework:  framework,
			Confidence: confidence,
			Priority:   rc.Priority,
			Code:       rc.Code,
		})
	}
	return cases
}

func decodeCaseArray(reply string) ([]rawCase, bool) {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") {
		reply = strings.TrimPrefix(reply, "```")
		if i := strings.Index(reply, "\n"); i >= 0 {
			reply = reply[i+1:]
		}
		if i := strings.LastIndex(reply, "```"); i >= 0 {
			reply = reply[:i]
		}
	}

	if start, end := strings.Index(reply, "["), strings.LastIndex(reply, "]"); start >= 0 && end > start {
		var raw []rawCase
		if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err == nil {
			return raw, true
		}
	}

	var raw []rawCase
	if err := json.Unmarshal([]byte(reply), &raw); err == nil {
		return raw, true
	}
	return nil, false
}

// defaultTestFile maps src/components/button.jsx to
// src/components/__tests__/button.test.jsx.
func defaultTestFile(file string) string {
	dir, base := filepath.Dir(file), filepath.Base(file)
	e := filepath.Ext(base)
	stem := strings.TrimSuffix(base, e)
	return filepath.ToSlash(filepath.Join(dir, "__tests__", stem+".test"+e))
}

// WriteFiles writes generated cases under root, grouped by TestFile.
// Cases sharing a test file are concatenated in priority order. Returns
// the written paths.
func WriteFiles(root string, cases []model.TestCase) ([]string, error) {
	grouped := make(map[string][]model.TestCase)
	for _, tc := range cases {
		grouped[tc.TestFile] = append(grouped[tc.TestFile], tc)
	}

	var written []string
	for testFile, group := range grouped {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Priority < group[j].Priority })

		var b strings.Builder
		for i, tc := range group {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(strings.TrimRight(tc.Code, "\n"))
			b.WriteString("\n")
		}

		path := filepath.Join(root, filepath.FromSlash(testFile))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return written, fmt.Errorf("creating test directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
			return written, fmt.Errorf("writing %s: %w", testFile, err)
		}
		written = append(written, path)
	}

	sort.Strings(written)
	return written, nil
}
