package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/typefind/internal/config"
	"github.com/mvp-joe/typefind/internal/storage"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts and run metadata",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	rt := runtimeOf(cmd)
	return executeStats(cmd.Context(), rt.cfg, rt.log, cmd.OutOrStdout())
}

func executeStats(ctx context.Context, cfg *config.Config, log *logrus.Logger, out io.Writer) error {
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	r := storage.NewReader(store.DB())
	counts, err := r.Counts(ctx)
	if err != nil {
		return err
	}
	meta, err := r.Metadata(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Database: %s\n\n", store.Path())
	width := 0
	for _, c := range counts {
		width = max(width, len(c.Table))
	}
	for _, c := range counts {
		fmt.Fprintf(out, "  %-*s  %s\n", width, c.Table, formatNumber(int(c.Rows)))
	}

	if len(meta) > 0 {
		fmt.Fprintln(out)
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %s\n", k, meta[k])
		}
	}
	return nil
}
