// Package cmd contains the CLI commands for mirror
package cmd

import (
	"fmt"
	"os"

	"github.com/ethpandaops/mirror/pkg/engine"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Global vars needed for cobra CLI
var (
	cfgFile string
	logger  *logrus.Logger
)

// rootCmd represents the base command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Mirror daily object store drops into warehouse tables",
	Long: `Mirror finds a dataset's file for a run date in the object store, stages it
in the warehouse, reconciles its header with the target table and loads it,
optionally checking the loaded rows and triggering downstream transformations.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogger)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error, fatal, panic), overrides the config file")

	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func initLogger() {
	logLevel, err := rootCmd.PersistentFlags().GetString("log-level")
	if err != nil {
		logLevel = "info"
	}

	level, parseErr := logrus.ParseLevel(logLevel)
	if parseErr != nil {
		logger.WithError(parseErr).Warn("Invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
}

// loadConfig reads the config file and applies its log level unless the
// --log-level flag was given
func loadConfig(cmd *cobra.Command) (*engine.Config, error) {
	cfg, err := engine.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flag := cmd.Flag("log-level"); flag == nil || !flag.Changed {
		level, err := logrus.ParseLevel(cfg.Logging)
		if err != nil {
			return nil, err
		}

		logger.SetLevel(level)
	}

	logger.WithField("file", cfgFile).Debug("Configuration loaded")

	return cfg, nil
}
