// Package llm wraps the model provider behind a minimal completion
// interface so agents and the test generator stay transport-agnostic.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Completer is the one capability the review core needs from a model
// provider. Implementations must respect ctx and return within a bounded
// time; they never retry indefinitely.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Gemini implements Completer on the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGemini creates a Gemini-backed completer.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Complete sends one system+user prompt pair and returns the text reply.
// Rate-limit responses are retried up to twice with a linear backoff.
func (g *Gemini) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemPrompt)},
		},
	}
	contents := []*genai.Content{genai.NewContentFromText(userPrompt, "user")}

	var resp *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			return resp.Text(), nil
		}
		if !strings.Contains(err.Error(), "429") || attempt == 2 {
			break
		}

		wait := time.Duration(15*(attempt+1)) * time.Second
		g.logger.Warn("rate limited, backing off", "wait", wait, "attempt", attempt+1)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("llm completion: %w", err)
}
