package agent

import (
	"context"
	"log/slog"

	"github.com/sprite-ai/revmcp/internal/llm"
)

// topicAgent is the shared implementation behind every topic: build a
// bounded prompt, call the model once, parse defensively, fingerprint.
// Topics differ only in their prompt material.
type topicAgent struct {
	topic  Topic
	llm    llm.Completer
	logger *slog.Logger
}

// New creates an agent for an arbitrary topic, e.g. one loaded from a
// YAML override file.
func New(t Topic, completer llm.Completer, logger *slog.Logger) Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &topicAgent{topic: t, llm: completer, logger: logger}
}

func (a *topicAgent) Name() string { return a.topic.Name }

// Execute runs the topic review. Transport and parse failures degrade to
// an empty result with confidence 0; they are logged, never propagated.
func (a *topicAgent) Execute(ctx context.Context, in Input) Result {
	if in.Diff == nil || len(in.Files) == 0 {
		return Result{Confidence: 0}
	}

	reply, err := a.llm.Complete(ctx, a.topic.SystemPrompt, buildUserPrompt(a.topic, in))
	if err != nil {
		a.logger.Warn("agent llm call failed",
			"agent", a.topic.Name, "revision", in.Diff.RevisionID, "error", err)
		return Result{Confidence: 0}
	}

	issues, ok := parseIssues(reply, a.topic.Name, in.Files, a.logger)
	if !ok {
		return Result{Confidence: 0}
	}
	return Result{Items: issues, Confidence: meanConfidence(issues)}
}
