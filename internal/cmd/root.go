package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spinwheel-io/spinwheel/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "spinwheel",
	Short: "Hub-and-spoke coordinator for decomposable optimization",
	Long: `Spinwheel runs replicated hub-and-spoke optimization wheels: each
cylinder hosts a hub driving the primal iteration plus heuristic spokes
that poll its published candidate solutions and report bounds back
through lock-free shared windows.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./spinwheel.yaml or ~/.config/spinwheel/spinwheel.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SPINWHEEL")
	// Nested keys map to underscored env vars, e.g. SPINWHEEL_HUB_MAX_ITERS.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// loadConfig reads and validates the layered configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, config.ValidationErrors(errs)
	}
	return cfg, nil
}
