package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errSettingsUnavailable = errors.New("settings service not configured")

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change settings",
	Long: `View and change the settings stored in ~/.invoicesync/config.toml.

The CLICKUP_API_TOKEN environment variable takes precedence over the stored
token.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a single setting",
	Long: `Change a single setting. Run 'invoicesync config keys' for the accepted keys.

Examples:
  invoicesync config set clickup.requests_per_minute 60
  invoicesync config set reconcile.update_description false`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token [token]",
	Short: "Store the ClickUp API token",
	Long: `Store the ClickUp personal API token (pk_...) or an OAuth access token.

Without an argument the token is read from the terminal without echo, or
from the first line of stdin when it is not a terminal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigSetToken,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the accepted setting keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errSettingsUnavailable
		}
		for _, k := range settingsService.Keys() {
			cmd.Println(k)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetTokenCmd)
	configCmd.AddCommand(configKeysCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsUnavailable
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	dataDir := settings.Storage.DataDir
	if dataDir == "" {
		dataDir = "(default)"
	}

	cmd.Println("ClickUp")
	cmd.Printf("  token:               %s\n", settings.ClickUp.MaskedToken())
	cmd.Printf("  base url:            %s\n", settings.ClickUp.BaseURL)
	cmd.Printf("  timeout:             %s\n", settings.ClickUp.Timeout)
	cmd.Printf("  requests per minute: %d\n", settings.ClickUp.RequestsPerMinute)
	cmd.Println()
	cmd.Println("Reconcile")
	cmd.Printf("  update description:  %t\n", settings.Reconcile.UpdateDescription)
	cmd.Printf("  auto create missing: %t\n", settings.Reconcile.AutoCreateMissing)
	cmd.Printf("  expand line items:   %t\n", settings.Reconcile.ExpandLineItems)
	cmd.Println()
	cmd.Println("Storage")
	cmd.Printf("  data dir:            %s\n", dataDir)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Status: %v\n", err)
	} else {
		cmd.Println("Status: ready")
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsUnavailable
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Set %s.\n", args[0])
	return nil
}

func runConfigSetToken(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsUnavailable
	}

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		read, err := readToken(cmd)
		if err != nil {
			return err
		}
		token = read
	}

	if err := settingsService.SetToken(token); err != nil {
		return err
	}
	cmd.Println("Token saved.")
	return nil
}

// readToken prompts on a terminal without echo, otherwise reads one line of input.
func readToken(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Print("ClickUp API token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
