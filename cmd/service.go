package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/mirror/pkg/engine"
	"github.com/spf13/cobra"
)

// runRoles starts the selected roles and blocks until SIGINT or SIGTERM
func runRoles(cmd *cobra.Command, roles engine.Roles) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	app, err := engine.NewService(ctx, logger, cfg, roles)
	if err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		_ = app.Stop()
		return err
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	return app.Stop()
}
