package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revmcp/internal/testgen"
)

// workerCmd is the subprocess side of the test analysis worker. The parent
// sends one JSON request on stdin and reads the matrix from stdout, so the
// command stays hidden from interactive use.
var workerCmd = &cobra.Command{
	Use:    "testgen-worker",
	Short:  "Run one test matrix analysis from stdin (internal)",
	Hidden: true,
	RunE:   runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	in, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading worker request: %w", err)
	}

	out, err := testgen.RunWorker(in, newLogger("warn"))
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(out)
	return err
}
