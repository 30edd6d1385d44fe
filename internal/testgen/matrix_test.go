package testgen

import (
	"testing"

	"github.com/sprite-ai/revmcp/internal/diff"
	"github.com/sprite-ai/revmcp/internal/model"
)

const componentDiff = `diff --git a/src/toggle.jsx b/src/toggle.jsx
new file mode 100644
index 0000000..e69de29
--- /dev/null
+++ b/src/toggle.jsx
@@ -0,0 +1,14 @@
+import { useState } from "react";
+
+export function Toggle({ initial }) {
+  const [on, setOn] = useState(initial);
+  if (initial === undefined) {
+    throw new Error("initial is required");
+  }
+  return (
+    <button onClick={() => setOn(!on)}>{on ? "on" : "off"}</button>
+  );
+}
+
+export const useToggle = (initial) => {
+  return useState(initial);
+};
diff --git a/src/styles.css b/src/styles.css
index abc1234..def5678 100644
--- a/src/styles.css
+++ b/src/styles.css
@@ -1,2 +1,3 @@
 .a {
+  color: red;
 }
`

func parseTestDiff(t *testing.T, raw string) *diff.Diff {
	t.Helper()
	return diff.Parse(raw, "D777", model.Metadata{}, nil)
}

func TestAnalyzeFeatures(t *testing.T) {
	m := Analyze(parseTestDiff(t, componentDiff), ProjectConfig{Framework: "jest"})

	if len(m.Features) != 2 {
		t.Fatalf("expected 2 features (css file excluded), got %d: %+v", len(m.Features), m.Features)
	}

	byName := make(map[string]Feature)
	for _, f := range m.Features {
		byName[f.Name] = f
	}
	if byName["Toggle"].Kind != "component" {
		t.Errorf("Toggle should be a component, got %q", byName["Toggle"].Kind)
	}
	if byName["useToggle"].Kind != "hook" {
		t.Errorf("useToggle should be a hook, got %q", byName["useToggle"].Kind)
	}
}

func TestAnalyzeScenarioCategories(t *testing.T) {
	m := Analyze(parseTestDiff(t, componentDiff), ProjectConfig{})

	got := make(map[string]bool)
	for _, sc := range m.Scenarios {
		got[sc.Category] = true
	}
	for _, want := range []string{CategoryHappyPath, CategoryEdgeCase, CategoryErrorPath, CategoryStateChange} {
		if !got[want] {
			t.Errorf("missing scenario category %q", want)
		}
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := Analyze(parseTestDiff(t, componentDiff), ProjectConfig{})
	b := Analyze(parseTestDiff(t, componentDiff), ProjectConfig{})

	if a.Summary.TotalFeatures != b.Summary.TotalFeatures ||
		a.Summary.TotalScenarios != b.Summary.TotalScenarios ||
		a.Summary.EstimatedTests != b.Summary.EstimatedTests {
		t.Errorf("analysis must be deterministic: %+v vs %+v", a.Summary, b.Summary)
	}
	for i := range a.Scenarios {
		if a.Scenarios[i] != b.Scenarios[i] {
			t.Errorf("scenario %d differs: %+v vs %+v", i, a.Scenarios[i], b.Scenarios[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	features := []Feature{{Name: "A"}, {Name: "B"}}
	scenarios := []Scenario{
		{Category: CategoryHappyPath, Cases: 1},
		{Category: CategoryHappyPath, Cases: 2},
		{Category: CategoryEdgeCase, Cases: 0}, // counts as at least 1
	}

	s := Summarize(features, scenarios)
	if s.TotalFeatures != 2 || s.TotalScenarios != 3 {
		t.Errorf("unexpected totals: %+v", s)
	}
	if s.ByCategory[CategoryHappyPath] != 2 || s.ByCategory[CategoryEdgeCase] != 1 {
		t.Errorf("unexpected category counts: %+v", s.ByCategory)
	}
	if s.EstimatedTests != 4 {
		t.Errorf("estimated tests should be 1+2+1=4, got %d", s.EstimatedTests)
	}
}

func TestAnalyzeSkipsDeletedAndBinary(t *testing.T) {
	deleted := `diff --git a/src/old.jsx b/src/old.jsx
deleted file mode 100644
index abc1234..0000000
--- a/src/old.jsx
+++ /dev/null
@@ -1,3 +0,0 @@
-export function Old() {
-  return null;
-}
`
	m := Analyze(parseTestDiff(t, deleted), ProjectConfig{})
	if len(m.Features) != 0 {
		t.Errorf("deleted files produce no features, got %+v", m.Features)
	}
	if m.Summary.EstimatedTests != 0 {
		t.Errorf("expected empty summary, got %+v", m.Summary)
	}
}
