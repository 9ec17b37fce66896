package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
	"github.com/custodia-labs/invoicesync/internal/logger"
)

var (
	reconcileMappings    []string
	reconcileMappingFile string
	reconcileProfile     string
	reconcileNoDesc      bool
	reconcileDesc        bool
	reconcileNoCreate    bool
	reconcileExpand      bool
	reconcileValuesFile  string
	reconcileJSON        bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Write extracted invoice data onto a task",
	Long: `Write extracted invoice data onto the custom fields of a ClickUp task.

Keys are matched to existing fields by normalised name. Use --mapping or
--profile to point a key at a specific field name or field ID.`,
}

var reconcileInvoiceCmd = &cobra.Command{
	Use:   "invoice <task-id> <invoice.json|->",
	Short: "Reconcile an extracted invoice onto a task",
	Long: `Writes the invoice header onto the task's custom fields, creating missing
fields, and keeps the line items as a table in the task description.

Use - to read the invoice from stdin. Use --expand to also create one
subtask per line item.`,
	Args: cobra.ExactArgs(2),
	RunE: runReconcileInvoice,
}

var reconcileKVCmd = &cobra.Command{
	Use:   "kv <task-id> [key=value...]",
	Short: "Reconcile free-form key/value pairs onto a task",
	Long: `Writes key/value pairs onto the task's custom fields.

Pairs can be given as arguments or as a JSON object with --file; arguments
take precedence. Values given as arguments are text and are converted to the
type of the field they land on.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReconcileKV,
}

var reconcileItemsCmd = &cobra.Command{
	Use:   "items <task-id> <invoice.json|->",
	Short: "Create or reuse one subtask per line item",
	Long: `Creates one subtask per invoice line item, or reuses the subtask created by
an earlier run, and writes the item values onto its custom fields.`,
	Args: cobra.ExactArgs(2),
	RunE: runReconcileItems,
}

func init() {
	for _, cmd := range []*cobra.Command{reconcileInvoiceCmd, reconcileKVCmd, reconcileItemsCmd} {
		addMappingFlags(cmd)
		cmd.Flags().BoolVar(&reconcileNoCreate, "no-create", false, "skip keys that match no field instead of creating one")
		cmd.Flags().BoolVar(&reconcileJSON, "json", false, "output the report as JSON")
	}
	reconcileInvoiceCmd.Flags().BoolVar(&reconcileNoDesc, "no-description", false, "do not update the line-item table in the description")
	reconcileInvoiceCmd.Flags().BoolVar(&reconcileExpand, "expand", false, "also create one subtask per line item")
	reconcileKVCmd.Flags().BoolVar(&reconcileDesc, "description", false, "also keep the pairs as a table in the description")
	reconcileKVCmd.Flags().StringVarP(&reconcileValuesFile, "file", "f", "", "JSON object of key/value pairs")

	reconcileCmd.AddCommand(reconcileInvoiceCmd)
	reconcileCmd.AddCommand(reconcileKVCmd)
	reconcileCmd.AddCommand(reconcileItemsCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func addMappingFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&reconcileMappings, "mapping", "m", nil, "map a key to a field name or ID (key=field, repeatable)")
	cmd.Flags().StringVar(&reconcileMappingFile, "mapping-file", "", "YAML or JSON file of key: field entries")
	cmd.Flags().StringVarP(&reconcileProfile, "profile", "p", "", "saved mapping profile to apply")
}

func runReconcileInvoice(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errNotConnected
	}
	ctx := cmd.Context()

	invoice, err := readInvoice(cmd, args[1])
	if err != nil {
		return err
	}
	mapping, err := resolveMapping(ctx, reconcileProfile, reconcileMappingFile, reconcileMappings)
	if err != nil {
		return err
	}

	opts := invoiceDefaults()
	opts.Mapping = mapping
	if reconcileNoDesc {
		opts.UpdateDescription = false
	}
	if reconcileNoCreate {
		opts.AutoCreateMissing = false
	}
	if reconcileExpand {
		opts.ExpandLineItems = true
	}

	report, err := reconciler.ReconcileInvoice(ctx, args[0], invoice, opts)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	return outputReport(cmd, report)
}

func runReconcileKV(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errNotConnected
	}
	ctx := cmd.Context()

	values, err := readValues(reconcileValuesFile, args[1:])
	if err != nil {
		return err
	}
	mapping, err := resolveMapping(ctx, reconcileProfile, reconcileMappingFile, reconcileMappings)
	if err != nil {
		return err
	}

	opts := keyValueDefaults()
	opts.Mapping = mapping
	opts.UpdateDescription = reconcileDesc
	if reconcileNoCreate {
		opts.AutoCreateMissing = false
	}

	report, err := reconciler.ReconcileKeyValues(ctx, args[0], values, opts)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	return outputReport(cmd, report)
}

func runReconcileItems(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errNotConnected
	}
	ctx := cmd.Context()

	invoice, err := readInvoice(cmd, args[1])
	if err != nil {
		return err
	}
	mapping, err := resolveMapping(ctx, reconcileProfile, reconcileMappingFile, reconcileMappings)
	if err != nil {
		return err
	}

	opts := driving.ExpandOptions{
		Mapping:           mapping,
		AutoCreateMissing: keyValueDefaults().AutoCreateMissing && !reconcileNoCreate,
	}

	report, err := reconciler.ExpandLineItems(ctx, args[0], invoice, opts)
	if err != nil {
		return fmt.Errorf("expand failed: %w", err)
	}
	return outputReport(cmd, report)
}

// outputReport prints the report and returns its failures, if any.
func outputReport(cmd *cobra.Command, report *domain.ReconciliationReport) error {
	if reconcileJSON {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		newPrinter(cmd.OutOrStdout()).report(report)
	}
	return report.Err()
}

// invoiceDefaults returns the invoice options with configured defaults applied.
func invoiceDefaults() driving.ReconcileOptions {
	opts := driving.DefaultInvoiceOptions()
	if rs := reconcileSettings(); rs != nil {
		opts.UpdateDescription = rs.UpdateDescription
		opts.AutoCreateMissing = rs.AutoCreateMissing
		opts.ExpandLineItems = rs.ExpandLineItems
	}
	return opts
}

// keyValueDefaults returns the key/value options with configured defaults applied.
func keyValueDefaults() driving.ReconcileOptions {
	opts := driving.DefaultKeyValueOptions()
	if rs := reconcileSettings(); rs != nil {
		opts.AutoCreateMissing = rs.AutoCreateMissing
	}
	return opts
}

func reconcileSettings() *domain.ReconcileSettings {
	if settingsService == nil {
		return nil
	}
	settings, err := settingsService.Get()
	if err != nil {
		logger.Warn("reading settings: %v", err)
		return nil
	}
	return &settings.Reconcile
}

// resolveMapping merges a saved profile, a mapping file and key=field pairs,
// later sources taking precedence.
func resolveMapping(ctx context.Context, profile, file string, pairs []string) (domain.FieldMapping, error) {
	overrides := domain.FieldMapping{}
	if file != "" {
		fromFile, err := readMappingFile(file)
		if err != nil {
			return nil, err
		}
		overrides = fromFile
	}
	if len(pairs) > 0 {
		fromArgs, err := domain.ParseFieldMappingPairs(pairs)
		if err != nil {
			return nil, err
		}
		overrides = overrides.Merge(fromArgs)
	}

	if mappingService == nil {
		if profile != "" {
			return nil, errors.New("mapping service not configured")
		}
		return overrides.Normalized(), nil
	}
	mapping, err := mappingService.Resolve(ctx, profile, overrides)
	if err != nil {
		return nil, fmt.Errorf("resolving mapping: %w", err)
	}
	return mapping, nil
}

// readMappingFile reads a flat key: field document. JSON is accepted as YAML.
func readMappingFile(path string) (domain.FieldMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: mapping file %s: %v", domain.ErrInvalidInput, path, err)
	}
	return domain.FieldMapping(m), nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func readInvoice(cmd *cobra.Command, path string) (*domain.InvoiceRecord, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return domain.ParseInvoice(data)
}

// readValues merges a JSON object file with key=value arguments.
func readValues(file string, pairs []string) (map[string]domain.Value, error) {
	values := make(map[string]domain.Value)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, file, err)
		}
	}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: %q must be key=value", domain.ErrInvalidInput, p)
		}
		values[strings.TrimSpace(key)] = domain.StringValue(value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no key/value pairs given", domain.ErrInvalidInput)
	}
	return values, nil
}
