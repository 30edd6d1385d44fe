package testgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/sprite-ai/revmcp/internal/diff"
	"github.com/sprite-ai/revmcp/internal/model"
)

// Runner analyzes a diff into a coverage matrix. Two implementations
// exist: direct in-process analysis and an out-of-process worker. Both
// honor the same contract, so callers never know which ran.
type Runner interface {
	Analyze(ctx context.Context, d *diff.Diff, cfg ProjectConfig) (*Matrix, error)
}

// Direct runs the analysis in-process.
type Direct struct{}

func (Direct) Analyze(ctx context.Context, d *diff.Diff, cfg ProjectConfig) (*Matrix, error) {
	return Analyze(d, cfg), nil
}

// WorkerRequest is the JSON payload sent to the worker process on stdin.
// The worker re-parses the raw diff itself, keeping the wire format free
// of parser internals.
type WorkerRequest struct {
	RevisionID string         `json:"revision_id"`
	Raw        string         `json:"raw"`
	Metadata   model.Metadata `json:"metadata"`
	Config     ProjectConfig  `json:"config"`
}

// Worker delegates analysis to a subprocess (normally
// "revmcp testgen-worker"), bounded by Timeout and cancellable through it.
type Worker struct {
	Command []string
	Timeout time.Duration
	Logger  *slog.Logger
}

func (w *Worker) Analyze(ctx context.Context, d *diff.Diff, cfg ProjectConfig) (*Matrix, error) {
	if len(w.Command) == 0 {
		return nil, fmt.Errorf("no worker command configured")
	}

	timeout := w.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := json.Marshal(WorkerRequest{
		RevisionID: d.RevisionID,
		Raw:        d.Raw,
		Metadata:   d.Metadata,
		Config:     cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding worker request: %w", err)
	}

	cmd := exec.CommandContext(ctx, w.Command[0], w.Command[1:]...)
	cmd.Stdin = bytes.NewReader(req)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("worker timed out after %s", timeout)
		}
		return nil, fmt.Errorf("worker failed: %w", err)
	}

	var m Matrix
	if err := json.Unmarshal(out, &m); err != nil {
		return nil, fmt.Errorf("decoding worker output: %w", err)
	}
	return &m, nil
}

// Fallback tries the worker first and transparently falls back to direct
// execution on any failure, including timeout. Identical inputs produce an
// equivalent matrix either way because Analyze is deterministic.
type Fallback struct {
	Worker Runner
	Direct Runner
	Logger *slog.Logger
}

func (f *Fallback) Analyze(ctx context.Context, d *diff.Diff, cfg ProjectConfig) (*Matrix, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if f.Worker != nil {
		m, err := f.Worker.Analyze(ctx, d, cfg)
		if err == nil {
			return m, nil
		}
		logger.Warn("worker analysis failed, falling back to direct execution",
			"revision", d.RevisionID, "error", err)
	}

	direct := f.Direct
	if direct == nil {
		direct = Direct{}
	}
	return direct.Analyze(ctx, d, cfg)
}

// RunWorker is the worker-process side: decode one request, analyze,
// encode the matrix. Used by the testgen-worker subcommand.
func RunWorker(in []byte, logger *slog.Logger) ([]byte, error) {
	var req WorkerRequest
	if err := json.Unmarshal(in, &req); err != nil {
		return nil, fmt.Errorf("decoding worker request: %w", err)
	}

	d := diff.Parse(req.Raw, req.RevisionID, req.Metadata, logger)
	m := Analyze(d, req.Config)

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding matrix: %w", err)
	}
	return out, nil
}
