package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/revmcp/internal/app"
	"github.com/sprite-ai/revmcp/internal/config"
	"github.com/sprite-ai/revmcp/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the MCP server. The client speaks JSON-RPC on stdin/stdout, so
all logging goes to stderr.

Tools:
  fetch-diff           Fetch and number a revision's diff
  review-diff          Run topic review agents over a diff
  invalidate-cache     Drop a revision's cached diff
  publish-comments     Post deduplicated issues as revision comments
  analyze-test-matrix  Build a test coverage matrix for a diff
  generate-tests       Generate unit test code for the matrix
  write-test-file      Write generated tests to disk`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// stdout belongs to the MCP transport.
	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("starting MCP server",
		"version", version, "topics", cfg.Review.Topics, "model", cfg.LLM.Model)

	return mcpserver.ServeStdio(server.New(a, version))
}

// newLogger builds the JSON stderr logger every command shares.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadApp is the shared setup for one-shot commands.
func loadApp(cmd *cobra.Command) (*app.App, context.Context, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Logging.Level)
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, ctx, nil
}
