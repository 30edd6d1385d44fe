package cli

import (
	"testing"

	"github.com/sprite-ai/revmcp/internal/model"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "check", "version", "testgen-worker"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestWorkerCommandHidden(t *testing.T) {
	if !workerCmd.Hidden {
		t.Error("testgen-worker should stay hidden from help output")
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	if version != "dev" {
		t.Errorf("expected default version %q, got %q", "dev", version)
	}
}

func TestSeverityStyleCoversAllLevels(t *testing.T) {
	for _, s := range []model.Severity{
		model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow,
	} {
		// Panics or zero styles would surface here.
		if severityStyle(s).Render("x") == "" {
			t.Errorf("severity %s renders empty", s)
		}
	}
}
