package testgen

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sprite-ai/revmcp/internal/diff"
)

// failingRunner simulates a worker that is down or crashing.
type failingRunner struct{ err error }

func (f failingRunner) Analyze(ctx context.Context, d *diff.Diff, cfg ProjectConfig) (*Matrix, error) {
	return nil, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// The fallback must be contract-preserving: with the worker disabled, the
// direct path yields a matrix with the same features and scenarios as the
// worker protocol would, because both run the same deterministic analysis.
func TestFallbackEquivalence(t *testing.T) {
	d := parseTestDiff(t, componentDiff)
	cfg := ProjectConfig{Framework: "jest"}
	ctx := context.Background()

	direct, err := (Direct{}).Analyze(ctx, d, cfg)
	if err != nil {
		t.Fatalf("direct: %v", err)
	}

	fb := &Fallback{
		Worker: failingRunner{err: errors.New("worker unavailable")},
		Logger: quietLogger(),
	}
	fromFallback, err := fb.Analyze(ctx, d, cfg)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}

	// And the worker protocol itself, exercised in-process.
	req, _ := json.Marshal(WorkerRequest{RevisionID: d.RevisionID, Raw: d.Raw, Config: cfg})
	out, err := RunWorker(req, quietLogger())
	if err != nil {
		t.Fatalf("worker protocol: %v", err)
	}
	var fromWorker Matrix
	if err := json.Unmarshal(out, &fromWorker); err != nil {
		t.Fatalf("decoding worker output: %v", err)
	}

	for name, m := range map[string]*Matrix{"fallback": fromFallback, "worker": &fromWorker} {
		if m.Summary.TotalFeatures != direct.Summary.TotalFeatures {
			t.Errorf("%s: feature count %d != direct %d", name, m.Summary.TotalFeatures, direct.Summary.TotalFeatures)
		}
		if m.Summary.TotalScenarios != direct.Summary.TotalScenarios {
			t.Errorf("%s: scenario count %d != direct %d", name, m.Summary.TotalScenarios, direct.Summary.TotalScenarios)
		}
		if m.Summary.EstimatedTests != direct.Summary.EstimatedTests {
			t.Errorf("%s: estimated tests %d != direct %d", name, m.Summary.EstimatedTests, direct.Summary.EstimatedTests)
		}
		if len(m.Scenarios) != len(direct.Scenarios) {
			continue
		}
		for i := range m.Scenarios {
			if m.Scenarios[i] != direct.Scenarios[i] {
				t.Errorf("%s: scenario %d differs: %+v vs %+v", name, i, m.Scenarios[i], direct.Scenarios[i])
			}
		}
	}
}

func TestWorkerMissingBinary(t *testing.T) {
	w := &Worker{Command: []string{"revmcp-worker-binary-that-does-not-exist"}, Timeout: time.Second}
	_, err := w.Analyze(context.Background(), parseTestDiff(t, componentDiff), ProjectConfig{})
	if err == nil {
		t.Fatal("expected error for missing worker binary")
	}
}

func TestFallbackUsesWorkerWhenHealthy(t *testing.T) {
	want := &Matrix{RevisionID: "from-worker"}
	fb := &Fallback{
		Worker: staticRunner{m: want},
		Logger: quietLogger(),
	}
	got, err := fb.Analyze(context.Background(), parseTestDiff(t, componentDiff), ProjectConfig{})
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if got.RevisionID != "from-worker" {
		t.Errorf("healthy worker result should be used as-is, got %+v", got)
	}
}

type staticRunner struct{ m *Matrix }

func (s staticRunner) Analyze(ctx context.Context, d *diff.Diff, cfg ProjectConfig) (*Matrix, error) {
	return s.m, nil
}

func TestRunWorkerBadRequest(t *testing.T) {
	if _, err := RunWorker([]byte("not json"), quietLogger()); err == nil {
		t.Fatal("expected error for malformed worker request")
	}
}
