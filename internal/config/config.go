// Package config loads and validates spinwheel configuration.
//
// Configuration comes from spinwheel.yaml (current directory or
// ~/.config/spinwheel/), overridable by flags bound through viper. In
// addition to the structured Config, each role receives a flat Options map
// (see options.go) carrying the per-heuristic knobs; a required-but-absent
// key there is a fatal error at role construction.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete spinwheel configuration
type Config struct {
	Wheel     WheelConfig     `mapstructure:"wheel"`
	Hub       HubConfig       `mapstructure:"hub"`
	Slam      SlamConfig      `mapstructure:"slam"`
	Lookahead LookaheadConfig `mapstructure:"lookahead"`
	Farmer    FarmerConfig    `mapstructure:"farmer"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WheelConfig controls topology and run limits
type WheelConfig struct {
	// Cylinders is the replication factor: how many full hub+spokes
	// replicas run in parallel (default: 1)
	Cylinders int `mapstructure:"cylinders"`
	// Spokes lists the spoke kinds to attach, in order.
	// Valid kinds: "slam_max", "slam_min", "lookahead"
	Spokes []string `mapstructure:"spokes"`
	// RunDir is where run artifacts (logs, solution files) are written.
	// Empty means logs go to stderr and nothing is written.
	RunDir string `mapstructure:"run_dir"`
}

// HubConfig controls the hub's primal loop and teardown
type HubConfig struct {
	// MaxIters caps the number of hub iterations (default: 100)
	MaxIters int `mapstructure:"max_iters"`
	// RelGap is the relative gap at which the default convergence
	// predicate declares the run converged (default: 0.01)
	RelGap float64 `mapstructure:"rel_gap"`
	// PollIntervalMs is the hub's loop cadence in milliseconds (default: 1)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// ShutdownGracePolls is how many poll intervals the hub waits for
	// spokes to exit after broadcasting the kill signal (default: 100)
	ShutdownGracePolls int `mapstructure:"shutdown_grace_polls"`
	// DefaultRho is the fallback penalty weight when no rho setter is
	// supplied; 0 means unset, which is rejected at setup
	DefaultRho float64 `mapstructure:"default_rho"`
}

// SlamConfig controls the aggregation-heuristic spokes
type SlamConfig struct {
	// RoundingBias is added before rounding integer-typed variables
	// (default: 0.0)
	RoundingBias float64 `mapstructure:"rounding_bias"`
}

// LookaheadConfig controls the cache-consuming look-ahead spoke
type LookaheadConfig struct {
	// ScenLimit caps how many candidate scenarios each look-ahead pass
	// evaluates. Required when the lookahead spoke is attached.
	ScenLimit int `mapstructure:"scen_limit"`
	// E1Tolerance is the allowed deviation of the scenario probability
	// mass from 1 (default: 1e-6)
	E1Tolerance float64 `mapstructure:"e1_tolerance"`
}

// FarmerConfig parameterizes the bundled sample-average demo model
type FarmerConfig struct {
	// Scens is the number of scenarios (default: 3)
	Scens int `mapstructure:"scens"`
	// CropsMultiplier scales the number of crops: 3x this many (default: 1)
	CropsMultiplier int `mapstructure:"crops_multiplier"`
	// UseInteger makes the acreage variables integer-typed (default: false)
	UseInteger bool `mapstructure:"use_integer"`
	// Seed fixes the scenario yield randomization (default: 0)
	Seed int64 `mapstructure:"seed"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `mapstructure:"level"`
	// MaxSizeMB rotates the run log when it exceeds this size; 0 disables
	// rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Wheel: WheelConfig{
			Cylinders: 1,
			Spokes:    []string{"slam_max", "lookahead"},
		},
		Hub: HubConfig{
			MaxIters:           100,
			RelGap:             0.01,
			PollIntervalMs:     1,
			ShutdownGracePolls: 100,
		},
		Slam: SlamConfig{
			RoundingBias: 0.0,
		},
		Lookahead: LookaheadConfig{
			ScenLimit:   3,
			E1Tolerance: 1e-6,
		},
		Farmer: FarmerConfig{
			Scens:           3,
			CropsMultiplier: 1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// configName is the config file base name viper searches for.
const configName = "spinwheel"

// Load reads configuration from the config file (if any) layered over
// defaults. Explicit flag bindings done by the CLI take precedence through
// the shared viper instance.
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "spinwheel"))
	}

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every default with viper so partial config files
// unmarshal into a fully populated Config.
func setDefaults() {
	d := Default()
	viper.SetDefault("wheel.cylinders", d.Wheel.Cylinders)
	viper.SetDefault("wheel.spokes", d.Wheel.Spokes)
	viper.SetDefault("wheel.run_dir", d.Wheel.RunDir)
	viper.SetDefault("hub.max_iters", d.Hub.MaxIters)
	viper.SetDefault("hub.rel_gap", d.Hub.RelGap)
	viper.SetDefault("hub.poll_interval_ms", d.Hub.PollIntervalMs)
	viper.SetDefault("hub.shutdown_grace_polls", d.Hub.ShutdownGracePolls)
	viper.SetDefault("hub.default_rho", d.Hub.DefaultRho)
	viper.SetDefault("slam.rounding_bias", d.Slam.RoundingBias)
	viper.SetDefault("lookahead.scen_limit", d.Lookahead.ScenLimit)
	viper.SetDefault("lookahead.e1_tolerance", d.Lookahead.E1Tolerance)
	viper.SetDefault("farmer.scens", d.Farmer.Scens)
	viper.SetDefault("farmer.crops_multiplier", d.Farmer.CropsMultiplier)
	viper.SetDefault("farmer.use_integer", d.Farmer.UseInteger)
	viper.SetDefault("farmer.seed", d.Farmer.Seed)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", d.Logging.MaxBackups)
}

// ConfigFilePath returns the path of the user config file, whether or not
// it exists.
func ConfigFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "spinwheel", configName+".yaml"), nil
}
