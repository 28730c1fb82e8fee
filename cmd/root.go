package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/cass-tech/storefront/internal/config"
	"github.com/cass-tech/storefront/internal/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Storefront checkout payment service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "config file (yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute is called by the main method of the package
func Execute() error {
	return rootCmd.Execute()
}

// setup reads the configuration and configures logging from it.
func setup(parent context.Context) (context.Context, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	ctx := log.WithLogger(parent, logrus.WithField("pid", os.Getpid()))
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log.SetLevel(cfg.Log.Level)
	log.SetFormatting(log.Formatting{JSON: cfg.Log.JSON, UTC: true})
	return ctx, cfg, nil
}
