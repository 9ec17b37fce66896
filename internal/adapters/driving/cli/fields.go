package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fieldsJSON bool

var fieldsCmd = &cobra.Command{
	Use:   "fields <task-id>",
	Short: "List the custom fields of a task's list",
	Long: `Lists the custom fields available on the list a task belongs to, in the
order ClickUp returns them. Useful for writing --mapping entries.`,
	Args: cobra.ExactArgs(1),
	RunE: runFields,
}

func init() {
	fieldsCmd.Flags().BoolVar(&fieldsJSON, "json", false, "output fields as JSON")
	rootCmd.AddCommand(fieldsCmd)
}

func runFields(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errNotConnected
	}

	schema, err := reconciler.InspectFields(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("inspect fields failed: %w", err)
	}

	if fieldsJSON {
		return printJSON(cmd.OutOrStdout(), schema.Fields())
	}
	newPrinter(cmd.OutOrStdout()).fields(schema)
	return nil
}
