// Package publish gates review issues before they become comments:
// anything whose fingerprint or near-identical message was already
// published for the revision is skipped, making review+publish idempotent.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sprite-ai/revmcp/internal/model"
	"github.com/sprite-ai/revmcp/internal/state"
)

// DefaultSimilarityThreshold is the Jaccard overlap above which two
// messages on nearby lines of the same file count as duplicates.
const DefaultSimilarityThreshold = 0.85

// maxLineDistance bounds how far apart two line-anchored issues can be
// and still be compared for near-duplication.
const maxLineDistance = 10

// Poster publishes one issue as a comment on the source system.
type Poster interface {
	Post(ctx context.Context, revision string, iss model.Issue) error
}

// Skip records why a candidate was withheld.
type Skip struct {
	Issue  model.Issue `json:"issue"`
	Reason string      `json:"reason"`
}

// Failure records a transport error while publishing.
type Failure struct {
	Issue model.Issue `json:"issue"`
	Err   string      `json:"error"`
}

// Outcome partitions the candidates of one publish call.
type Outcome struct {
	Published []model.Issue `json:"published"`
	Skipped   []Skip        `json:"skipped"`
	Failed    []Failure     `json:"failed"`
}

// Gate filters candidates against the published-issue state store.
type Gate struct {
	state     *state.Store
	threshold float64
	logger    *slog.Logger
}

// NewGate creates a publish gate. threshold <= 0 uses the default.
func NewGate(st *state.Store, threshold float64, logger *slog.Logger) *Gate {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{state: st, threshold: threshold, logger: logger}
}

// Publish posts every candidate that is neither an exact nor a near
// duplicate of something already published for the revision. A nil poster
// records state without posting (dry-run). Issues published earlier in the
// same call participate in dedup too, so duplicate candidates within one
// batch collapse.
func (g *Gate) Publish(ctx context.Context, revision string, candidates []model.Issue, poster Poster) (*Outcome, error) {
	prior, err := g.state.ForRevision(revision)
	if err != nil {
		return nil, fmt.Errorf("loading publish state for %s: %w", revision, err)
	}

	out := &Outcome{}
	for _, iss := range candidates {
		if reason := g.duplicateReason(iss, prior); reason != "" {
			out.Skipped = append(out.Skipped, Skip{Issue: iss, Reason: reason})
			continue
		}

		if poster != nil {
			if err := poster.Post(ctx, revision, iss); err != nil {
				g.logger.Warn("posting comment failed",
					"revision", revision, "fingerprint", iss.ID, "error", err)
				out.Failed = append(out.Failed, Failure{Issue: iss, Err: err.Error()})
				continue
			}
		}

		now := time.Now()
		iss.PublishedAt = &now
		if err := g.state.Record(revision, iss); err != nil {
			return nil, fmt.Errorf("recording published issue: %w", err)
		}

		out.Published = append(out.Published, iss)
		prior = append(prior, state.Published{
			Fingerprint: iss.ID,
			File:        iss.File,
			Line:        iss.Line,
			Message:     iss.Message,
		})
	}

	return out, nil
}

// duplicateReason returns a human-readable skip reason, or "" when the
// candidate is new.
func (g *Gate) duplicateReason(iss model.Issue, prior []state.Published) string {
	for _, p := range prior {
		if p.Fingerprint == iss.ID {
			return "exact-duplicate"
		}
	}

	for _, p := range prior {
		if p.File != iss.File {
			continue
		}
		if iss.Line > 0 && p.Line > 0 {
			d := iss.Line - p.Line
			if d < 0 {
				d = -d
			}
			if d > maxLineDistance {
				continue
			}
		}
		if sim := Similarity(iss.Message, p.Message); sim >= g.threshold {
			return fmt.Sprintf("near-duplicate (%.0f%% similar to %s)", sim*100, p.Fingerprint)
		}
	}

	return ""
}
