package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/stencil/parallel-stencil-go/core"
)

type runFlags struct {
	configPath string
	engine     string
	iterations int
	n          int
	tasks      int
	seed       int64
	left       float64
	right      float64
	inPath     string
	outPath    string
	verify     bool
	tolerance  float64
	metricsOut string
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "stencil",
		Short:        "Iterative 1D stencil averaging with barrier-synchronised worker pools",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	root.AddCommand(newGenerateCmd(), newRunCmd(), newBenchCmd())
	return root
}

func addProblemFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML run configuration")
	cmd.Flags().IntVar(&f.iterations, "iterations", 0, "Number of iterations")
	cmd.Flags().IntVar(&f.n, "n", 0, "Number of interior points")
	cmd.Flags().IntVar(&f.tasks, "tasks", 0, "Number of workers for parallel engines")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Seed for random initial values")
	cmd.Flags().Float64Var(&f.left, "left", 0, "Left boundary value")
	cmd.Flags().Float64Var(&f.right, "right", 0, "Right boundary value")
}

// resolveConfig loads --config (or defaults) and applies explicitly set flags.
func resolveConfig(cmd *cobra.Command, f *runFlags) (core.Config, error) {
	cfg := core.DefaultConfig()
	if f.configPath != "" {
		loaded, err := core.LoadConfig(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = f.engine
	}
	if flags.Changed("iterations") {
		cfg.Iterations = f.iterations
	}
	if flags.Changed("n") {
		cfg.N = f.n
	}
	if flags.Changed("tasks") {
		cfg.Tasks = f.tasks
	}
	if flags.Changed("seed") {
		cfg.Seed = f.seed
	}
	if flags.Changed("left") {
		cfg.Left = f.left
	}
	if flags.Changed("right") {
		cfg.Right = f.right
	}
	return cfg, nil
}

// loadWorkspace reads --in when given, otherwise generates from cfg.
func loadWorkspace(f *runFlags, cfg *core.Config) (*core.Workspace, error) {
	if f.inPath == "" {
		return cfg.Workspace(), nil
	}
	in, err := os.Open(f.inPath)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	snap, err := core.ReadSnapshot(in)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	cfg.N = int(snap.N)
	return snap.Workspace(), nil
}

func writeSnapshot(path string, w *core.Workspace, iterations int) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	if err := core.WriteSnapshot(out, core.SnapshotOf(w, iterations)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func newGenerateCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a snapshot with random interior values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			if cfg.N < 0 {
				return fmt.Errorf("n must be >= 0, got %d", cfg.N)
			}
			if err := writeSnapshot(f.outPath, cfg.Workspace(), 0); err != nil {
				return err
			}
			slog.Info("snapshot written", "path", f.outPath, "n", cfg.N, "seed", cfg.Seed)
			return nil
		},
	}
	addProblemFlags(cmd, f)
	cmd.Flags().StringVar(&f.outPath, "out", "", "Output snapshot path")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one engine and optionally verify it against the sequential engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, f)
		},
	}
	addProblemFlags(cmd, f)
	cmd.Flags().StringVar(&f.engine, "engine", "", "Engine: seq, barrier or fuzzy")
	cmd.Flags().StringVar(&f.inPath, "in", "", "Input snapshot (default: generate from --n and --seed)")
	cmd.Flags().StringVar(&f.outPath, "out", "", "Write the result snapshot here")
	cmd.Flags().BoolVar(&f.verify, "verify", false, "Compare the result with the sequential engine")
	cmd.Flags().Float64Var(&f.tolerance, "tolerance", 1e-9, "Maximum per-element difference accepted by --verify")
	cmd.Flags().StringVar(&f.metricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this file")
	return cmd
}

func runEngine(cmd *cobra.Command, f *runFlags) error {
	cfg, err := resolveConfig(cmd, f)
	if err != nil {
		return err
	}
	w, err := loadWorkspace(f, &cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := core.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	opts := core.Options{Logger: slog.Default(), Metrics: metrics}

	engine, err := core.NewEngine(cfg.Engine, cfg.Tasks, opts)
	if err != nil {
		return err
	}

	var oracle *core.Workspace
	if f.verify {
		oracle = w.Clone()
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
	defer stop()

	start := time.Now()
	if err := engine.Run(ctx, w, cfg.Iterations); err != nil {
		return err
	}
	elapsed := time.Since(start)
	fmt.Fprintf(cmd.OutOrStdout(), "engine=%s n=%d tasks=%d iterations=%d elapsed=%s\n",
		engine.Name(), cfg.N, cfg.Tasks, cfg.Iterations, elapsed)

	if oracle != nil {
		if err := core.NewSequentialEngine(opts).Run(ctx, oracle, cfg.Iterations); err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		diff := core.MaxAbsDiff(w.Current(), oracle.Current())
		if diff > f.tolerance {
			return fmt.Errorf("verify: max difference %g exceeds tolerance %g", diff, f.tolerance)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "verified max_diff=%g\n", diff)
	}

	if f.outPath != "" {
		if err := writeSnapshot(f.outPath, w, cfg.Iterations); err != nil {
			return err
		}
	}
	if f.metricsOut != "" {
		if err := prometheus.WriteToTextfile(f.metricsOut, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func newBenchCmd() *cobra.Command {
	f := &runFlags{}
	var repeats int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time every engine on the same input",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if repeats < 1 {
				repeats = 1
			}
			base := cfg.Workspace()
			opts := core.Options{Logger: slog.Default()}

			var reference []float64
			for _, name := range core.EngineNames() {
				engine, err := core.NewEngine(name, cfg.Tasks, opts)
				if err != nil {
					return err
				}
				best := time.Duration(0)
				var result *core.Workspace
				for r := 0; r < repeats; r++ {
					w := base.Clone()
					start := time.Now()
					if err := engine.Run(cmdContext(cmd), w, cfg.Iterations); err != nil {
						return err
					}
					if d := time.Since(start); best == 0 || d < best {
						best = d
					}
					result = w
				}
				if reference == nil {
					reference = result.Current()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s tasks=%-4d best=%-14s max_diff=%g\n",
					name, cfg.Tasks, best, core.MaxAbsDiff(reference, result.Current()))
			}
			return nil
		},
	}
	addProblemFlags(cmd, f)
	cmd.Flags().IntVar(&repeats, "repeats", 3, "Runs per engine; the fastest is reported")
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
