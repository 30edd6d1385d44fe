package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/revmcp/internal/app"
	"github.com/sprite-ai/revmcp/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check [revision]",
	Short: "Review a revision and print a report (non-interactive)",
	Long: `Run the topic review agents over a revision and print the findings.
Defaults to HEAD of the configured repository; accepts a git commit,
range, or Phabricator revision id. Useful for CI and pre-commit hooks.

Exit codes:
  0 - clean, no issues found
  1 - medium or low severity issues found
  2 - critical or high severity issues found`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringP("format", "f", "text", "output format: text, json")
	checkCmd.Flags().StringSlice("topics", nil, "topic subset to run (default: all configured)")
	checkCmd.Flags().Bool("force-refresh", false, "skip the diff cache")
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, ctx, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	revision := "HEAD"
	if len(args) > 0 {
		revision = args[0]
	}

	topics, _ := cmd.Flags().GetStringSlice("topics")
	refresh, _ := cmd.Flags().GetBool("force-refresh")

	rev, err := a.Review(ctx, revision, topics, refresh)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rev); err != nil {
			return err
		}
	} else {
		printReview(rev)
	}

	exitForSeverity(rev.Issues)
	return nil
}

// Severity styles.
var (
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")).Bold(true)
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c"))
	mediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f1fa8c"))
	lowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
	fileStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#bd93f9")).Bold(true)
)

func severityStyle(s model.Severity) lipgloss.Style {
	switch s {
	case model.SeverityCritical:
		return criticalStyle
	case model.SeverityHigh:
		return highStyle
	case model.SeverityMedium:
		return mediumStyle
	default:
		return lowStyle
	}
}

func printReview(rev *app.Review) {
	fmt.Printf("%d file(s) changed, +%d -%d\n", rev.Files, rev.Additions, rev.Deletions)
	for topic, conf := range rev.Confidence {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %s confidence %.2f", topic, conf)))
	}
	fmt.Println()

	if len(rev.Issues) == 0 {
		fmt.Println("No issues found.")
		return
	}

	var lastFile string
	for _, iss := range rev.Issues {
		if iss.File != lastFile {
			fmt.Println(fileStyle.Render(iss.File))
			lastFile = iss.File
		}

		loc := ""
		if iss.Line > 0 {
			loc = fmt.Sprintf(":%d", iss.Line)
		}
		label := severityStyle(iss.Severity).Render(fmt.Sprintf("[%s/%s]", iss.Topic, iss.Severity))
		fmt.Printf("  %s %s%s %s\n", label, iss.File, loc, iss.Message)
		if iss.Suggestion != "" {
			fmt.Println(dimStyle.Render("    suggestion: " + iss.Suggestion))
		}
	}
}

func exitForSeverity(issues []model.Issue) {
	worst := 99
	for _, iss := range issues {
		if r := iss.Severity.Rank(); r < worst {
			worst = r
		}
	}
	switch {
	case worst <= model.SeverityHigh.Rank():
		os.Exit(2)
	case worst <= model.SeverityLow.Rank():
		os.Exit(1)
	}
}
