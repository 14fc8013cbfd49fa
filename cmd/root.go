package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/preloader/engine/config"
	"github.com/spaghettifunk/preloader/engine/core"
)

var (
	cfgFile  string
	logLevel string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "preload",
	Short: "Preload game resources in the background",
	Long: `preload classifies resource files by extension and loads groups of them
through the matching loaders, one per frame, reporting progress as it goes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "preload.toml", "TOML configuration file, defaults apply when it does not exist")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides the configured log level (debug, info, warn, error)")
}

// loadConfig reads the configuration and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}
