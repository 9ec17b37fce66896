// Package cli implements the invoicesync command line on top of cobra.
// Commands reach the core only through the driving ports set by SetServices.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
	"github.com/custodia-labs/invoicesync/internal/logger"
)

// version is set at build time via -ldflags or by SetVersion.
var version = "dev"

var (
	reconciler      driving.Reconciler
	settingsService driving.SettingsService
	mappingService  driving.MappingService
)

// errNotConnected is returned by commands that need ClickUp when no token is configured.
var errNotConnected = errors.New("clickup is not configured: run 'invoicesync config set-token' first")

var rootCmd = &cobra.Command{
	Use:   "invoicesync",
	Short: "Reconcile extracted invoice data onto ClickUp tasks",
	Long: `invoicesync writes structured invoice data onto a ClickUp task.

Header values are matched to the custom fields of the task's list, missing
fields are created, and line items are kept as a table in the task
description or expanded into subtasks. Every call prints a report of what
was written, created, skipped or failed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log each reconciliation step to stderr")
}

// Services holds the driving ports the commands use.
// Reconciler is nil when no ClickUp token is configured.
type Services struct {
	Reconciler driving.Reconciler
	Settings   driving.SettingsService
	Mappings   driving.MappingService
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	reconciler = s.Reconciler
	settingsService = s.Settings
	mappingService = s.Mappings
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
