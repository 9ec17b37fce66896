package cli

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

var (
	mappingListID string
	mappingFile   string
	mappingJSON   bool
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Manage saved field mapping profiles",
	Long: `Profiles save key to field mappings under a name so they can be applied
with --profile. A profile maps invoice keys to field names or field IDs.`,
}

var mappingSetCmd = &cobra.Command{
	Use:   "set <name> [key=field...]",
	Short: "Create or replace a mapping profile",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMappingSet,
}

var mappingShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a mapping profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runMappingShow,
}

var mappingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mapping profiles",
	Args:  cobra.NoArgs,
	RunE:  runMappingList,
}

var mappingDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a mapping profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runMappingDelete,
}

func init() {
	mappingSetCmd.Flags().StringVar(&mappingListID, "list", "", "scope the profile to a list ID")
	mappingSetCmd.Flags().StringVarP(&mappingFile, "file", "f", "", "YAML or JSON file of key: field entries")
	mappingShowCmd.Flags().BoolVar(&mappingJSON, "json", false, "output the profile as JSON")

	mappingCmd.AddCommand(mappingSetCmd)
	mappingCmd.AddCommand(mappingShowCmd)
	mappingCmd.AddCommand(mappingListCmd)
	mappingCmd.AddCommand(mappingDeleteCmd)
	rootCmd.AddCommand(mappingCmd)
}

func runMappingSet(cmd *cobra.Command, args []string) error {
	if mappingService == nil {
		return errors.New("mapping service not configured")
	}

	mapping := domain.FieldMapping{}
	if mappingFile != "" {
		fromFile, err := readMappingFile(mappingFile)
		if err != nil {
			return err
		}
		mapping = fromFile
	}
	if len(args) > 1 {
		fromArgs, err := domain.ParseFieldMappingPairs(args[1:])
		if err != nil {
			return err
		}
		mapping = mapping.Merge(fromArgs)
	}

	profile, err := mappingService.Set(cmd.Context(), args[0], mappingListID, mapping)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	cmd.Printf("Saved profile %q with %d entries.\n", profile.Name, len(profile.Mapping))
	return nil
}

func runMappingShow(cmd *cobra.Command, args []string) error {
	if mappingService == nil {
		return errors.New("mapping service not configured")
	}

	profile, err := mappingService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	if mappingJSON {
		return printJSON(cmd.OutOrStdout(), profile)
	}

	cmd.Printf("Profile: %s\n", profile.Name)
	if profile.ListID != "" {
		cmd.Printf("List: %s\n", profile.ListID)
	}
	if !profile.UpdatedAt.IsZero() {
		cmd.Printf("Updated: %s\n", profile.UpdatedAt.Local().Format(time.DateTime))
	}
	if len(profile.Mapping) == 0 {
		cmd.Println("No entries.")
		return nil
	}
	cmd.Println()
	for _, key := range sortedKeys(profile.Mapping) {
		cmd.Printf("  %s = %s\n", key, profile.Mapping[key])
	}
	return nil
}

func runMappingList(cmd *cobra.Command, _ []string) error {
	if mappingService == nil {
		return errors.New("mapping service not configured")
	}

	profiles, err := mappingService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	if len(profiles) == 0 {
		cmd.Println("No mapping profiles saved.")
		return nil
	}
	for i := range profiles {
		scope := "any list"
		if profiles[i].ListID != "" {
			scope = "list " + profiles[i].ListID
		}
		cmd.Printf("  %s (%d entries, %s)\n", profiles[i].Name, len(profiles[i].Mapping), scope)
	}
	return nil
}

func runMappingDelete(cmd *cobra.Command, args []string) error {
	if mappingService == nil {
		return errors.New("mapping service not configured")
	}

	if err := mappingService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	cmd.Printf("Deleted profile %q.\n", args[0])
	return nil
}

func sortedKeys(m domain.FieldMapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
