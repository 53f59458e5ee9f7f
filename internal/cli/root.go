package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mvp-joe/typefind/internal/config"
)

var (
	cfgFile string
	verbose bool
	dbPath  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "typefind",
	Short: "Typefind - a C++ symbol graph builder",
	Long: `Typefind turns the declarations and references of a C++ code base into a
relational graph stored in SQLite: types, records and their inheritance
closure, functions with overrides and call sites, enums, aliases, template
parameters and local variable references.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.typefind.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database (default typefind.db)")
}

// flagBindings maps config keys to the flags that override them. A command
// only binds the flags it defines.
var flagBindings = map[string]string{
	"storage.path":   "db",
	"storage.remove": "remove",
	"metrics.file":   "metrics-file",
}

// runtime is what PersistentPreRunE prepares for the command being run.
type runtime struct {
	cfg *config.Config
	log *logrus.Logger
}

type runtimeKey struct{}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log, verbose, os.Stderr)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, runtimeKey{}, &runtime{cfg: cfg, log: log}))
	return nil
}

func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	bindings := make(map[string]string)
	for key, name := range flagBindings {
		if flags.Lookup(name) != nil {
			bindings[key] = name
		}
	}
	opts := []config.Option{config.WithFlags(flags, bindings)}
	if cfgFile != "" {
		opts = append(opts, config.WithConfigFile(cfgFile))
	}
	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func runtimeOf(cmd *cobra.Command) *runtime {
	if rt, ok := cmd.Context().Value(runtimeKey{}).(*runtime); ok {
		return rt
	}
	return &runtime{cfg: config.Default(), log: logrus.New()}
}

// newLogger builds the logger every component receives. verbose forces the
// debug level.
func newLogger(cfg config.LogConfig, verbose bool, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
