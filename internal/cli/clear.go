package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/typefind/internal/config"
	"github.com/mvp-joe/typefind/internal/storage"
)

// clearCmd represents the clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every row and keep the schema",
	Long: `Clear empties the symbol graph. The schema, and therefore the file, are
kept; identity counters start again from one.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	rt := runtimeOf(cmd)
	if err := executeClear(rt.cfg, rt.log); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", rt.cfg.Storage.Path)
	return nil
}

func executeClear(cfg *config.Config, log *logrus.Logger) error {
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Clear()
}

// openStore opens the configured store for a maintenance command. The file
// is never removed here; --remove belongs to index.
func openStore(cfg *config.Config, log *logrus.Logger) (*storage.Store, error) {
	return storage.Open(storage.Options{
		Path:              cfg.Storage.Path,
		Lock:              cfg.Storage.Lock,
		ResolverCacheSize: cfg.Index.ResolverCacheSize,
		Logger:            log,
	})
}
