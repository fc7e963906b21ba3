package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spinwheel-io/spinwheel/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or manage spinwheel configuration",
	Long: `View or manage spinwheel configuration.

Without arguments, displays the current configuration as loaded from
spinwheel.yaml (current directory or ~/.config/spinwheel/) layered over
defaults.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/spinwheel/spinwheel.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Println("wheel:")
	fmt.Printf("  cylinders: %d\n", cfg.Wheel.Cylinders)
	fmt.Printf("  spokes: [%s]\n", strings.Join(cfg.Wheel.Spokes, ", "))
	fmt.Printf("  run_dir: %q\n", cfg.Wheel.RunDir)
	fmt.Println("hub:")
	fmt.Printf("  max_iters: %d\n", cfg.Hub.MaxIters)
	fmt.Printf("  rel_gap: %g\n", cfg.Hub.RelGap)
	fmt.Printf("  poll_interval_ms: %d\n", cfg.Hub.PollIntervalMs)
	fmt.Printf("  shutdown_grace_polls: %d\n", cfg.Hub.ShutdownGracePolls)
	fmt.Printf("  default_rho: %g\n", cfg.Hub.DefaultRho)
	fmt.Println("slam:")
	fmt.Printf("  rounding_bias: %g\n", cfg.Slam.RoundingBias)
	fmt.Println("lookahead:")
	fmt.Printf("  scen_limit: %d\n", cfg.Lookahead.ScenLimit)
	fmt.Printf("  e1_tolerance: %g\n", cfg.Lookahead.E1Tolerance)
	fmt.Println("farmer:")
	fmt.Printf("  scens: %d\n", cfg.Farmer.Scens)
	fmt.Printf("  crops_multiplier: %d\n", cfg.Farmer.CropsMultiplier)
	fmt.Printf("  use_integer: %v\n", cfg.Farmer.UseInteger)
	fmt.Printf("  seed: %d\n", cfg.Farmer.Seed)
	fmt.Println("logging:")
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Printf("  max_backups: %d\n", cfg.Logging.MaxBackups)

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Println()
		fmt.Println("Validation problems:")
		for _, e := range errs {
			fmt.Printf("  - %s\n", e.Error())
		}
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.ConfigFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	d := config.Default()
	content := fmt.Sprintf(`# spinwheel configuration
wheel:
  cylinders: %d
  spokes: [%s]
  run_dir: ""

hub:
  max_iters: %d
  rel_gap: %g
  poll_interval_ms: %d
  shutdown_grace_polls: %d
  default_rho: 1.0

slam:
  rounding_bias: %g

lookahead:
  scen_limit: %d
  e1_tolerance: %g

farmer:
  scens: %d
  crops_multiplier: %d
  use_integer: %v
  seed: %d

logging:
  level: %s
  max_size_mb: %d
  max_backups: %d
`,
		d.Wheel.Cylinders, strings.Join(d.Wheel.Spokes, ", "),
		d.Hub.MaxIters, d.Hub.RelGap, d.Hub.PollIntervalMs, d.Hub.ShutdownGracePolls,
		d.Slam.RoundingBias,
		d.Lookahead.ScenLimit, d.Lookahead.E1Tolerance,
		d.Farmer.Scens, d.Farmer.CropsMultiplier, d.Farmer.UseInteger, d.Farmer.Seed,
		d.Logging.Level, d.Logging.MaxSizeMB, d.Logging.MaxBackups)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return err
	}
	fmt.Printf("Created config file: %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := config.ConfigFilePath()
	if err != nil {
		return err
	}
	fmt.Println(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("(file does not exist; run 'spinwheel config init' to create it)")
	}
	return nil
}
