package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SNTSVV/Extended-Gator/pkg/analysis"
	"github.com/SNTSVV/Extended-Gator/pkg/config"
	"github.com/SNTSVV/Extended-Gator/pkg/logging"
	"github.com/SNTSVV/Extended-Gator/pkg/metrics"
	"github.com/SNTSVV/Extended-Gator/pkg/output"
	"github.com/SNTSVV/Extended-Gator/pkg/watcher"
)

var log = logging.New("main")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "guiflow",
		Short:         "Solve GUI object flow over an extracted constraint graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("facts", "", "Path to the extracted facts file (YAML)")
	pf.String("listeners", "", "Listener registration table overriding the built-in one")
	pf.Bool("strict", false, "Fail on the first classification violation")
	pf.Int("workers", 1, "Parallel reachability workers")
	pf.String("format", "text", "Output format: text or json")
	pf.String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	pf.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	pf.CountP("verbose", "v", "Increase log verbosity (repeatable)")

	solve := &cobra.Command{
		Use:   "solve [facts]",
		Short: "Build the flow graph and compute the solution maps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, false)
		},
	}
	solve.Flags().Bool("show-cycles", false, "Also report recursive flows")
	solve.Flags().Bool("watch", false, "Re-run whenever the facts, listener table or config file change")

	cycles := &cobra.Command{
		Use:   "cycles [facts]",
		Short: "Report recursive flows in the flow graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, true)
		},
	}

	root.AddCommand(solve, cycles)
	return root
}

func run(cmd *cobra.Command, args []string, cyclesOnly bool) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Facts = args[0]
	}
	if cfg.Facts == "" {
		return fmt.Errorf("no facts file given (use --facts or a positional argument)")
	}
	logging.SetLevel(logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt))

	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
	}
	runner := analysis.NewAnalysisRunner(m)
	ctx := cmd.Context()

	if err := report(ctx, cmd.OutOrStdout(), runner, cfg, cyclesOnly, cmd.Name()); err != nil {
		return err
	}
	if err := writeMetrics(ctx, m, cfg.MetricsFile); err != nil {
		return err
	}
	if !cfg.Watch {
		return nil
	}
	return watch(ctx, cmd.OutOrStdout(), runner, m, cfg, cyclesOnly)
}

// report runs one analysis and prints it in the configured format
func report(ctx context.Context, w io.Writer, runner *analysis.AnalysisRunner, cfg *config.Config, cyclesOnly bool, reason string) error {
	opts := analysis.AnalysisOptions{
		FactsPath:     cfg.Facts,
		ListenersPath: cfg.Listeners,
		Strict:        cfg.Strict,
		Workers:       cfg.Workers,
		FindCycles:    cyclesOnly,
		Reason:        reason,
	}
	res, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}

	switch {
	case cfg.Format == "json":
		err = output.WriteJSON(w, res)
	case cyclesOnly:
		output.PrintCycles(w, res)
	default:
		output.PrintSolveReport(w, res, cfg.VerboseCnt > 0)
	}
	if err != nil || !cfg.ShowCycles || cyclesOnly {
		return err
	}

	opts.FindCycles = true
	opts.Reason = "show-cycles"
	cyc, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	if cfg.Format == "json" {
		return output.WriteJSON(w, cyc)
	}
	output.PrintCycles(w, cyc)
	return nil
}

func writeMetrics(ctx context.Context, m *metrics.Metrics, path string) error {
	if path == "" {
		return nil
	}
	if err := m.WriteToTextfile(path); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	log.Info(ctx, "Wrote metrics", "path", path)
	return nil
}

// watch re-runs the analysis whenever one of its inputs changes, until ctx
// is cancelled. Failed re-runs are logged and do not stop the loop.
func watch(ctx context.Context, w io.Writer, runner *analysis.AnalysisRunner, m *metrics.Metrics, cfg *config.Config, cyclesOnly bool) error {
	fw, err := watcher.NewFileWatcher(map[string]watcher.ChangeType{
		cfg.Facts:       watcher.ChangeTypeFacts,
		cfg.Listeners:   watcher.ChangeTypeListeners,
		config.FileName: watcher.ChangeTypeConfig,
	})
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		fw.Close()
		return err
	}
	d := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 3*time.Second)
	d.Start(ctx)

	log.Info(ctx, "Watching for changes (Ctrl-C to stop)", "facts", cfg.Facts)
	for ev := range d.Output() {
		if ctx.Err() != nil {
			break
		}
		log.Info(ctx, "Inputs changed, re-running", "type", ev.Type, "paths", len(ev.Paths))
		if err := report(ctx, w, runner, cfg, cyclesOnly, "watch:"+ev.Type.String()); err != nil {
			log.Error(ctx, "Re-run failed", "error", err)
			continue
		}
		if err := writeMetrics(ctx, m, cfg.MetricsFile); err != nil {
			log.Error(ctx, "Metrics export failed", "error", err)
		}
	}
	return nil
}
