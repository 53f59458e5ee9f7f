package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/typefind/internal/config"
	"github.com/mvp-joe/typefind/internal/storage"
)

// errClosureIncomplete is returned by check when rows are missing and were
// not repaired, so scripts can test the exit status.
var errClosureIncomplete = errors.New("inheritance closure is incomplete")

var repairFlag bool

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Audit the inheritance closure",
	Long: `Check recomputes the ancestor rows implied by the recorded base classes and
compares them with the stored closure. It reports missing and unexpected rows
and inheritance cycles.

With --repair the missing rows are inserted. Unexpected rows are reported
only.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&repairFlag, "repair", false, "Insert missing closure rows")
}

func runCheck(cmd *cobra.Command, args []string) error {
	rt := runtimeOf(cmd)
	return executeCheck(cmd.Context(), rt.cfg, rt.log, repairFlag, cmd.OutOrStdout())
}

func executeCheck(ctx context.Context, cfg *config.Config, log *logrus.Logger, repair bool, out io.Writer) error {
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := storage.AuditClosure(ctx, storage.NewReader(store.DB()))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Base edges:     %s\n", formatNumber(report.Edges))
	fmt.Fprintf(out, "Closure rows:   %s\n", formatNumber(report.Rows))
	fmt.Fprintf(out, "Missing rows:   %s\n", formatNumber(len(report.Missing)))
	fmt.Fprintf(out, "Extra rows:     %s\n", formatNumber(len(report.Extra)))
	fmt.Fprintf(out, "Cycles:         %s\n", formatNumber(len(report.Cycles)))
	for _, cycle := range report.Cycles {
		fmt.Fprintf(out, "  cycle through decls %v\n", cycle)
	}

	if report.Complete {
		fmt.Fprintln(out, "Closure is complete")
		return nil
	}
	if !repair || len(report.Missing) == 0 {
		return errClosureIncomplete
	}

	n, err := store.Hierarchy().Repair(report.Missing)
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}
	fmt.Fprintf(out, "Inserted %s missing rows\n", formatNumber(n))
	if len(report.Extra) > 0 || len(report.Cycles) > 0 {
		return errClosureIncomplete
	}
	return nil
}
