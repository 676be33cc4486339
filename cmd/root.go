// Package cmd wires the command line entry points.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/example/wordbot/internal/config"
	"github.com/example/wordbot/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "wordbot",
	Short:         "Vocabulary quiz bot with spaced repetition",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{EnvFiles: []string{envFile}, ConfigFile: configFile})
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*database.Store, error) {
	store, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	log.WithField("driver", cfg.Database.Driver).Debug("database ready")
	return store, nil
}
