package cmd

import (
	"strings"

	"github.com/picogrid/swarm-nav/pkg/config"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swarmctl",
	Short: "Drone swarm formation and navigation CLI",
	Long: `swarmctl flies simulated drone swarms through takeoff, formation assembly,
timed waypoint tours and landing, with collision avoidance that keeps working
when the communication link degrades or drops.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default is ./swarm.yaml or ./swarm.toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	// Add commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(formationCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(eventsCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig binds SWARM_* environment variables and applies the global
// output flags
func initConfig() {
	viper.SetEnvPrefix("SWARM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if level := viper.GetString("log_level"); level != "" {
		logger.SetLevel(logger.ParseLevel(level))
	}
	logger.SetNoColor(viper.GetBool("no_color"))
}

// loadConfig loads the swarm configuration named by --config, falling back
// to the working directory and the defaults. The config's logging section
// applies unless the flags override it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigOrDefault(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	if level := viper.GetString("log_level"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	if viper.GetBool("no_color") {
		cfg.Logging.NoColor = true
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetNoColor(cfg.Logging.NoColor)
	return cfg, nil
}
