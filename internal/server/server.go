// Package server exposes the review and test generation pipelines as MCP
// tools over stdio. Protocol translation lives here; business logic stays
// in the app package.
package server

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sprite-ai/revmcp/internal/app"
)

// New creates the MCP server and registers every tool.
func New(a *app.App, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"revmcp",
		version,
		server.WithToolCapabilities(false),
	)

	h := NewHandler(a)

	s.AddTool(mcp.NewTool("fetch-diff",
		mcp.WithDescription("Fetch a revision's diff (Phabricator D-number or git ref) and return it in numbered form with metadata and stats. Results are cached; set force_refresh to bypass the cache."),
		mcp.WithString("revision",
			mcp.Required(),
			mcp.Description("Revision identifier: a Phabricator id like D12345, or a git commit/range"),
		),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Skip the cache and refetch from the source"),
		),
	), h.FetchDiff)

	s.AddTool(mcp.NewTool("review-diff",
		mcp.WithDescription("Run the topic review agents over a revision's diff and return deduplicatable issues with per-topic confidence."),
		mcp.WithString("revision",
			mcp.Required(),
			mcp.Description("Revision identifier"),
		),
		mcp.WithString("topics",
			mcp.Description("Comma-separated topic subset (e.g. \"css,accessibility\"); empty runs every configured topic"),
		),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Skip the diff cache"),
		),
	), h.ReviewDiff)

	s.AddTool(mcp.NewTool("publish-comments",
		mcp.WithDescription("Publish review issues as revision comments, skipping anything already published (exact or near-duplicate). Dry runs record state without posting."),
		mcp.WithString("revision",
			mcp.Required(),
			mcp.Description("Phabricator revision id (git refs support dry runs only)"),
		),
		mcp.WithString("issues",
			mcp.Required(),
			mcp.Description("JSON array of issues, as returned by review-diff"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Record publish state without posting comments"),
		),
	), h.PublishComments)

	s.AddTool(mcp.NewTool("invalidate-cache",
		mcp.WithDescription("Drop the cached diff for a revision so the next fetch goes back to the source."),
		mcp.WithString("revision",
			mcp.Required(),
			mcp.Description("Revision identifier whose cached diff should be dropped"),
		),
	), h.InvalidateCache)

	s.AddTool(mcp.NewTool("analyze-test-matrix",
		mcp.WithDescription("Analyze a revision's diff into a test coverage matrix: testable features and the happy-path/edge-case/error-path/state-change scenarios each needs."),
		mcp.WithString("revision",
			mcp.Required(),
			mcp.Description("Revision identifier"),
		),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Skip the diff cache"),
		),
	), h.AnalyzeTestMatrix)

	s.AddTool(mcp.NewTool("generate-tests",
		mcp.WithDescription("Generate unit test code for a revision's coverage matrix, optionally filtered by scenario category."),
		mcp.WithString("revision",
			mcp.Required(),
			mcp.Description("Revision identifier"),
		),
		mcp.WithString("categories",
			mcp.Description("Comma-separated scenario categories (happy-path, edge-case, error-path, state-change); empty means all"),
		),
		mcp.WithNumber("max_tests",
			mcp.Description("Cap on generated scenarios; 0 uses the configured default"),
		),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Skip the diff cache"),
		),
	), h.GenerateTests)

	s.AddTool(mcp.NewTool("write-test-file",
		mcp.WithDescription("Write generated test cases to disk under a project root, grouped by test file in priority order."),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Project root the test file paths are relative to"),
		),
		mcp.WithString("cases",
			mcp.Required(),
			mcp.Description("JSON array of test cases, as returned by generate-tests"),
		),
	), h.WriteTestFile)

	return s
}
