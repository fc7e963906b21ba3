package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spinwheel-io/spinwheel/internal/config"
	"github.com/spinwheel-io/spinwheel/internal/cylinders"
	"github.com/spinwheel-io/spinwheel/internal/errors"
	"github.com/spinwheel-io/spinwheel/internal/event"
	"github.com/spinwheel-io/spinwheel/internal/logging"
	"github.com/spinwheel-io/spinwheel/internal/opt"
	"github.com/spinwheel-io/spinwheel/internal/opt/farmer"
	"github.com/spinwheel-io/spinwheel/internal/wheel"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Spin a wheel over the bundled farmer model",
	Long: `Run a full wheel: one hub per cylinder stepping the farmer
sample-average model, with the configured heuristic spokes reporting
bounds. Prints a run summary and optionally writes solution files.`,
	RunE: runRun,
}

var (
	firstStageSolutionPath string
	treeSolutionPath       string
	quietRun               bool
)

func init() {
	f := runCmd.Flags()
	f.Int("scens", 3, "total scenario count across all cylinders")
	f.Int("crops-multiplier", 1, "crop set multiplier (3x this many variables)")
	f.Bool("use-integer", false, "integer-typed acreage variables")
	f.Int64("seed", 0, "scenario randomization seed")
	f.Int("cylinders", 1, "replication factor")
	f.StringSlice("spokes", []string{"slam_max", "lookahead"}, "spoke kinds to attach (slam_max, slam_min, lookahead)")
	f.Int("max-iters", 100, "hub iteration cap")
	f.Float64("rel-gap", 0.01, "relative gap convergence threshold")
	f.Int("lookahead-scen-limit", 3, "candidate scenarios per look-ahead pass")
	f.Float64("rounding-bias", 0, "bias added before rounding integer variables")
	f.Float64("default-rho", 1.0, "fallback penalty weight")
	f.String("run-dir", "", "directory for the run log (stderr when empty)")
	f.String("log-level", "info", "log level (debug, info, warn, error)")

	f.StringVar(&firstStageSolutionPath, "first-stage-solution", "", "write the first-stage solution to this file")
	f.StringVar(&treeSolutionPath, "tree-solution", "", "write the full scenario-tree solution to this file")
	f.BoolVar(&quietRun, "quiet", false, "suppress per-iteration progress output")

	_ = viper.BindPFlag("farmer.scens", f.Lookup("scens"))
	_ = viper.BindPFlag("farmer.crops_multiplier", f.Lookup("crops-multiplier"))
	_ = viper.BindPFlag("farmer.use_integer", f.Lookup("use-integer"))
	_ = viper.BindPFlag("farmer.seed", f.Lookup("seed"))
	_ = viper.BindPFlag("wheel.cylinders", f.Lookup("cylinders"))
	_ = viper.BindPFlag("wheel.spokes", f.Lookup("spokes"))
	_ = viper.BindPFlag("wheel.run_dir", f.Lookup("run-dir"))
	_ = viper.BindPFlag("hub.max_iters", f.Lookup("max-iters"))
	_ = viper.BindPFlag("hub.rel_gap", f.Lookup("rel-gap"))
	_ = viper.BindPFlag("hub.default_rho", f.Lookup("default-rho"))
	_ = viper.BindPFlag("lookahead.scen_limit", f.Lookup("lookahead-scen-limit"))
	_ = viper.BindPFlag("slam.rounding_bias", f.Lookup("rounding-bias"))
	_ = viper.BindPFlag("logging.level", f.Lookup("log-level"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewLoggerWithRotation(cfg.Wheel.RunDir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	bus := event.NewBus()
	if !quietRun {
		bus.Subscribe("bound.improved", func(e event.Event) {
			ev := e.(event.BoundImprovedEvent)
			fmt.Printf("  cylinder %d: %s %s bound -> %g\n", ev.Cylinder, ev.Role, ev.Kind, ev.Bound)
		})
	}

	factory := farmerFactory(cfg)
	spinner, err := wheel.NewSpinner(factory,
		wheel.WithCylinders(cfg.Wheel.Cylinders),
		wheel.WithSpokes(cfg.Wheel.Spokes...),
		wheel.WithMaxIters(cfg.Hub.MaxIters),
		wheel.WithRelGap(cfg.Hub.RelGap),
		wheel.WithPollInterval(time.Duration(cfg.Hub.PollIntervalMs)*time.Millisecond),
		wheel.WithSense(cylinders.Minimize),
		wheel.WithOptions(roleOptions(cfg)),
		wheel.WithLogger(logger),
		wheel.WithBus(bus),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	if err := spinner.Spin(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("run interrupted before completion")
		}
		return err
	}
	elapsed := time.Since(started)

	sol, err := spinner.Solution(0)
	if err != nil {
		return err
	}
	printSummary(cfg, sol, elapsed)

	if firstStageSolutionPath != "" {
		if err := writeSolutionFile(firstStageSolutionPath, sol.WriteFirstStageSolution); err != nil {
			return err
		}
	}
	if treeSolutionPath != "" {
		if err := writeSolutionFile(treeSolutionPath, sol.WriteTreeSolution); err != nil {
			return err
		}
	}
	return nil
}

// farmerFactory builds one farmer model per rank over that rank's cylinder
// partition.
func farmerFactory(cfg *config.Config) opt.Factory {
	return func(cylinder int) (opt.Optimizer, error) {
		return farmer.New(farmer.Config{
			Scens:           cfg.Farmer.Scens,
			CropsMultiplier: cfg.Farmer.CropsMultiplier,
			UseInteger:      cfg.Farmer.UseInteger,
			Seed:            cfg.Farmer.Seed,
			Cylinder:        cylinder,
			Cylinders:       cfg.Wheel.Cylinders,
		})
	}
}

// roleOptions flattens the structured config into the per-role options map.
func roleOptions(cfg *config.Config) config.Options {
	return config.Options{
		"default_rho":          cfg.Hub.DefaultRho,
		"shutdown_grace_polls": cfg.Hub.ShutdownGracePolls,
		"rounding_bias":        cfg.Slam.RoundingBias,
		"scen_limit":           cfg.Lookahead.ScenLimit,
		"e1_tolerance":         cfg.Lookahead.E1Tolerance,
	}
}

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	summaryKeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)
	summaryValStyle   = lipgloss.NewStyle().Bold(true)
)

func printSummary(cfg *config.Config, sol *wheel.Solution, elapsed time.Duration) {
	row := func(key, val string) string {
		return summaryKeyStyle.Render(key) + summaryValStyle.Render(val)
	}

	lines := []string{
		summaryTitleStyle.Render("RUN SUMMARY"),
		row("Cylinders", fmt.Sprintf("%d x (hub + %s)", cfg.Wheel.Cylinders, strings.Join(cfg.Wheel.Spokes, " + "))),
		row("Scenarios", fmt.Sprintf("%d", cfg.Farmer.Scens)),
		row("Iterations", fmt.Sprintf("%d", sol.Iterations())),
		row("Gap", fmt.Sprintf("%.3g", sol.Gap())),
		row("Best inner", fmt.Sprintf("%.6g", sol.BestInner())),
		row("Best outer", fmt.Sprintf("%.6g", sol.BestOuter())),
		row("Expected obj", fmt.Sprintf("%.6g", sol.ExpectedObjective())),
		row("Wall time", elapsed.Round(time.Millisecond).String()),
	}

	summaries := sol.SpokeSummaries()
	kinds := make([]string, 0, len(summaries))
	for kind := range summaries {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		lines = append(lines, row(kind, fmt.Sprintf("%.6g", summaries[kind])))
	}

	fmt.Println()
	fmt.Println(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// writeSolutionFile renders a solution through the given writer method as
// "name: v0 v1 ..." lines.
func writeSolutionFile(path string, write func(wheel.SolutionWriter) error) error {
	var sb strings.Builder
	err := write(func(name string, nonants []float64) error {
		sb.WriteString(name)
		sb.WriteString(":")
		for _, v := range nonants {
			fmt.Fprintf(&sb, " %g", v)
		}
		sb.WriteString("\n")
		return nil
	})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}
