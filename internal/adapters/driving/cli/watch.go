package cli

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/invoicesync/internal/adapters/driving/watch"
	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

var (
	watchDebounce time.Duration
	watchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Reconcile invoice files as they appear in a directory",
	Long: `Watches a directory for <task-id>.json invoice files and reconciles each one
onto the task named by the file once it stops changing.

Processed files are moved to done/, or to failed/ when parsing failed or the
report has failures, next to a <task-id>.report.json holding the report.
Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addMappingFlags(watchCmd)
	watchCmd.Flags().BoolVar(&reconcileNoDesc, "no-description", false, "do not update the line-item table in the description")
	watchCmd.Flags().BoolVar(&reconcileNoCreate, "no-create", false, "skip keys that match no field instead of creating one")
	watchCmd.Flags().BoolVar(&reconcileExpand, "expand", false, "also create one subtask per line item")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", domain.DefaultWatchDebounce, "how long a file must stay unchanged")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also process files already in the directory")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errNotConnected
	}
	ctx := cmd.Context()

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

	w, err := watch.New(args[0], reconciler, watch.Options{
		Debounce:        watchDebounce,
		Reconcile:       opts,
		ProcessExisting: watchExisting,
		OnResult: func(r watch.Result) {
			name := filepath.Base(r.Path)
			switch {
			case r.Err != nil:
				cmd.Printf("FAIL  %s: %v\n", name, r.Err)
			case r.Report.HasFailures():
				cmd.Printf("FAIL  %s: %s\n", name, r.Report.Summary())
			default:
				cmd.Printf("ok    %s: %s\n", name, r.Report.Summary())
			}
		},
	})
	if err != nil {
		return err
	}

	cmd.Printf("Watching %s (Ctrl-C to stop)\n", args[0])
	return w.Run(ctx)
}
