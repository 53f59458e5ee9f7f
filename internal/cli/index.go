package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/typefind/internal/config"
	"github.com/mvp-joe/typefind/internal/filter"
	"github.com/mvp-joe/typefind/internal/frontend"
	"github.com/mvp-joe/typefind/internal/graph"
	"github.com/mvp-joe/typefind/internal/storage"
)

var (
	eventsFlag      []string
	removeFlag      bool
	quietFlag       bool
	metricsFileFlag string
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [--events FILE|-]... [SOURCE...] [-- compiler-args]",
	Short: "Build the symbol graph",
	Long: `Index clears the store and rebuilds the symbol graph.

Events come from JSON Lines files given with --events ("-" reads standard
input) and from C++ source files given as arguments, which are parsed by the
built-in tree-sitter front-end. Event files are applied first, then sources,
each in the order given. Arguments after "--" are compiler arguments and are
ignored.

Statements that fail are logged and skipped; they do not fail the run.

Examples:
  # Index two headers into ./typefind.db
  typefind index src/widget.h src/widget.cpp

  # Replay events produced by another front-end
  typefind index --events events.jsonl --db graph.db

  # Start from a fresh file and export metrics
  typefind index --remove --metrics-file typefind.prom src/*.cpp
`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringArrayVar(&eventsFlag, "events", nil, `JSON Lines event file, or "-" for stdin (repeatable)`)
	indexCmd.Flags().BoolVar(&removeFlag, "remove", false, "Delete the database file before opening it")
	indexCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress output")
	indexCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
}

// indexInputs are the event files and sources of one run.
type indexInputs struct {
	events  []string
	sources []string
	stdin   io.Reader
}

func runIndex(cmd *cobra.Command, args []string) error {
	rt := runtimeOf(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources := args
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		sources = args[:dash]
	}
	in := indexInputs{events: eventsFlag, sources: sources, stdin: cmd.InOrStdin()}

	progress := newProgressReporter(quietFlag, cmd.ErrOrStderr(), in)
	stats, err := executeIndex(ctx, rt.cfg, rt.log, in, progress.OnEvent)
	progress.Finish()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("indexing cancelled")
		}
		return err
	}

	if !quietFlag {
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s events (%s skipped, %s failed statements)\n",
			formatNumber(stats.Events), formatNumber(stats.Skipped), formatNumber(stats.Failed))
	}
	return nil
}

// executeIndex runs one indexing pass: it opens and clears the store, applies
// every input and records the run. A statement failure is counted in the
// returned stats and does not make the run fail.
func executeIndex(ctx context.Context, cfg *config.Config, log *logrus.Logger, in indexInputs, onEvent func(*graph.Event)) (stats graph.Stats, err error) {
	if len(in.events) == 0 && len(in.sources) == 0 {
		return stats, fmt.Errorf("nothing to index: pass --events or source files")
	}

	accept, err := filter.New(cfg.Filter, log)
	if err != nil {
		return stats, fmt.Errorf("failed to build filter: %w", err)
	}
	defer accept.Close()

	store, err := storage.Open(storage.Options{
		Path:              cfg.Storage.Path,
		Remove:            cfg.Storage.Remove,
		Lock:              cfg.Storage.Lock,
		ResolverCacheSize: cfg.Index.ResolverCacheSize,
		Logger:            log,
	})
	if err != nil {
		return stats, err
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		return stats, err
	}
	if cfg.Storage.SingleTransaction {
		if err := store.Begin(); err != nil {
			return stats, err
		}
	}
	// Close rolls back whatever is still open on failure.

	runID, err := store.StartRun()
	if err != nil {
		return stats, fmt.Errorf("failed to record run: %w", err)
	}

	srcs, closeSources, err := openSources(ctx, cfg, log, in)
	if err != nil {
		return stats, err
	}
	defer closeSources()

	builder := graph.NewBuilder(store, accept, graph.Options{
		MaxTemplateDepth: cfg.Index.MaxTemplateDepth,
		OnEvent:          onEvent,
	}, log)
	stats, err = builder.Run(ctx, graph.Concat(srcs...))
	if err != nil {
		return stats, fmt.Errorf("indexing failed: %w", err)
	}
	if err := accept.Err(); err != nil {
		return stats, fmt.Errorf("filter script failed: %w", err)
	}

	if err := store.FinishRun(); err != nil {
		return stats, fmt.Errorf("failed to record run: %w", err)
	}
	if err := store.Commit(); err != nil {
		return stats, err
	}

	if cfg.Metrics.File != "" {
		if err := store.Metrics().WriteTextfile(cfg.Metrics.File); err != nil {
			return stats, fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"run_id":  runID,
		"events":  stats.Events,
		"skipped": stats.Skipped,
		"failed":  stats.Failed,
	}).Info("index run finished")
	return stats, nil
}

// openSources opens the event files, then parses the C++ sources. The
// returned func closes everything that was opened.
func openSources(ctx context.Context, cfg *config.Config, log *logrus.Logger, in indexInputs) ([]graph.Source, func(), error) {
	var (
		srcs    []graph.Source
		closers []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	stdinUsed := false
	for _, path := range in.events {
		if path == "-" {
			if stdinUsed {
				closeAll()
				return nil, nil, errors.New(`standard input ("-") given more than once`)
			}
			stdinUsed = true
			r := in.stdin
			if r == nil {
				r = os.Stdin
			}
			srcs = append(srcs, graph.NewDecoder(r, "<stdin>"))
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open events: %w", err)
		}
		closers = append(closers, f)
		srcs = append(srcs, graph.NewDecoder(f, path))
	}

	if len(in.sources) > 0 {
		parsed, err := frontend.NewCPP(log, cfg.Index.Workers).Parse(ctx, in.sources)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("front-end failed: %w", err)
		}
		closers = append(closers, parsed)
		srcs = append(srcs, parsed)
	}
	return srcs, closeAll, nil
}
