package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sprite-ai/revmcp/internal/app"
	"github.com/sprite-ai/revmcp/internal/model"
)

// Handler adapts MCP tool calls to app operations. Caller mistakes (bad
// arguments, unknown topics) become tool-result errors so the client can
// correct itself; only infrastructure failures propagate as Go errors.
type Handler struct {
	app *app.App
}

// NewHandler creates a Handler around an app container.
func NewHandler(a *app.App) *Handler {
	return &Handler{app: a}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// splitList parses a comma-separated parameter into trimmed entries.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fetchDiffResult is the fetch-diff tool payload.
type fetchDiffResult struct {
	Revision  string         `json:"revision"`
	Metadata  model.Metadata `json:"metadata"`
	Files     []string       `json:"files"`
	Additions int            `json:"additions"`
	Deletions int            `json:"deletions"`
	Numbered  string         `json:"numbered_diff"`
}

// FetchDiff handles the fetch-diff tool.
func (h *Handler) FetchDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	revision, err := req.RequireString("revision")
	if err != nil {
		return mcp.NewToolResultError("revision is required"), nil
	}

	d, err := h.app.FetchDiff(ctx, revision, req.GetBool("force_refresh", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetching diff: %v", err)), nil
	}

	_, added, deleted := d.Stats()
	return jsonResult(fetchDiffResult{
		Revision:  d.RevisionID,
		Metadata:  d.Metadata,
		Files:     d.Paths(),
		Additions: added,
		Deletions: deleted,
		Numbered:  d.Numbered(),
	})
}

// InvalidateCache handles the invalidate-cache tool.
func (h *Handler) InvalidateCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	revision, err := req.RequireString("revision")
	if err != nil {
		return mcp.NewToolResultError("revision is required"), nil
	}

	n, err := h.app.InvalidateDiff(revision)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalidating cache: %v", err)), nil
	}
	return jsonResult(map[string]any{"revision": revision, "removed": n})
}

// ReviewDiff handles the review-diff tool.
func (h *Handler) ReviewDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	revision, err := req.RequireString("revision")
	if err != nil {
		return mcp.NewToolResultError("revision is required"), nil
	}
	topics := splitList(req.GetString("topics", ""))

	rev, err := h.app.Review(ctx, revision, topics, req.GetBool("force_refresh", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}
	return jsonResult(rev)
}

// PublishComments handles the publish-comments tool.
func (h *Handler) PublishComments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	revision, err := req.RequireString("revision")
	if err != nil {
		return mcp.NewToolResultError("revision is required"), nil
	}
	rawIssues, err := req.RequireString("issues")
	if err != nil {
		return mcp.NewToolResultError("issues is required"), nil
	}

	var issues []model.Issue
	if err := json.Unmarshal([]byte(rawIssues), &issues); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("issues must be a JSON array: %v", err)), nil
	}
	if len(issues) == 0 {
		return mcp.NewToolResultError("issues array is empty"), nil
	}

	out, err := h.app.Publish(ctx, revision, issues, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("publish failed: %v", err)), nil
	}
	return jsonResult(out)
}

// AnalyzeTestMatrix handles the analyze-test-matrix tool.
func (h *Handler) AnalyzeTestMatrix(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	revision, err := req.RequireString("revision")
	if err != nil {
		return mcp.NewToolResultError("revision is required"), nil
	}

	m, err := h.app.AnalyzeTestMatrix(ctx, revision, req.GetBool("force_refresh", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	return jsonResult(m)
}

// generateTestsResult is the generate-tests tool payload.
type generateTestsResult struct {
	Revision string           `json:"revision"`
	Cases    []model.TestCase `json:"cases"`
	Matrix   any              `json:"matrix_summary"`
}

// GenerateTests handles the generate-tests tool.
func (h *Handler) GenerateTests(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	revision, err := req.RequireString("revision")
	if err != nil {
		return mcp.NewToolResultError("revision is required"), nil
	}
	categories := splitList(req.GetString("categories", ""))
	maxTests := req.GetInt("max_tests", 0)

	cases, m, err := h.app.GenerateTests(ctx, revision, categories, maxTests, req.GetBool("force_refresh", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("test generation failed: %v", err)), nil
	}
	return jsonResult(generateTestsResult{
		Revision: revision,
		Cases:    cases,
		Matrix:   m.Summary,
	})
}

// WriteTestFile handles the write-test-file tool.
func (h *Handler) WriteTestFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("root")
	if err != nil {
		return mcp.NewToolResultError("root is required"), nil
	}
	rawCases, err := req.RequireString("cases")
	if err != nil {
		return mcp.NewToolResultError("cases is required"), nil
	}

	var cases []model.TestCase
	if err := json.Unmarshal([]byte(rawCases), &cases); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cases must be a JSON array: %v", err)), nil
	}
	if len(cases) == 0 {
		return mcp.NewToolResultError("cases array is empty"), nil
	}

	written, err := h.app.WriteTests(root, cases)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("writing tests: %v", err)), nil
	}
	return jsonResult(map[string]any{"written": written})
}
