package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/logger"
)

var (
	batchConcurrency int
	batchJSON        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "Reconcile many invoices from a manifest",
	Long: `Reconciles every job of a YAML manifest, several tasks at a time.

Invoice paths are relative to the manifest. Job fields override defaults.

  defaults:
    profile: acme
    expand: false
  jobs:
    - task: 86a1b2c3
      invoice: invoices/2026-001.json
    - task: 86a1b2c4
      invoice: invoices/2026-002.json
      mapping:
        total: Grand Total
      description: false

A failed job does not stop the others. The command exits non-zero when any
job failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", domain.DefaultBatchConcurrency, "tasks reconciled at the same time")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "output all reports as JSON")
	rootCmd.AddCommand(batchCmd)
}

// batchJob is one manifest entry. Nil flags fall back to the defaults.
type batchJob struct {
	Task        string            `yaml:"task"`
	Invoice     string            `yaml:"invoice"`
	Profile     string            `yaml:"profile"`
	Mapping     map[string]string `yaml:"mapping"`
	Description *bool             `yaml:"description"`
	Create      *bool             `yaml:"create"`
	Expand      *bool             `yaml:"expand"`
}

type batchManifest struct {
	Defaults batchJob   `yaml:"defaults"`
	Jobs     []batchJob `yaml:"jobs"`
}

// batchResult is the outcome of one job.
type batchResult struct {
	Task    string                       `json:"task"`
	Invoice string                       `json:"invoice"`
	Report  *domain.ReconciliationReport `json:"report,omitempty"`
	Error   string                       `json:"error,omitempty"`

	err error
}

func (r *batchResult) failed() bool {
	return r.err != nil || (r.Report != nil && r.Report.HasFailures())
}

func runBatch(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errNotConnected
	}

	manifest, err := loadManifest(args[0])
	if err != nil {
		return err
	}
	if len(manifest.Jobs) == 0 {
		cmd.Println("Manifest has no jobs.")
		return nil
	}

	results := runJobs(cmd.Context(), manifest, batchConcurrency)

	failed := 0
	for i := range results {
		if results[i].failed() {
			failed++
		}
	}

	if batchJSON {
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		for i := range results {
			r := &results[i]
			switch {
			case r.err != nil:
				cmd.Printf("FAIL  %s (%s): %v\n", r.Task, r.Invoice, r.err)
			case r.Report.HasFailures():
				cmd.Printf("FAIL  %s\n", r.Report.Summary())
			default:
				cmd.Printf("ok    %s\n", r.Report.Summary())
			}
		}
		cmd.Printf("\n%d of %d jobs succeeded.\n", len(results)-failed, len(results))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed: %w", failed, len(results), domain.ErrPartialFailure)
	}
	return nil
}

// runJobs reconciles the jobs with at most limit tasks in flight. Jobs for the
// same task run one after another in manifest order. Results keep manifest order.
func runJobs(ctx context.Context, manifest *batchManifest, limit int) []batchResult {
	if limit < 1 {
		limit = 1
	}
	results := make([]batchResult, len(manifest.Jobs))

	var g errgroup.Group
	g.SetLimit(limit)

	var mu sync.Mutex
	done := 0
	for _, group := range jobsByTask(manifest.Jobs) {
		g.Go(func() error {
			for _, i := range group {
				job := manifest.Jobs[i].withDefaults(manifest.Defaults)
				results[i] = runJob(ctx, job)

				mu.Lock()
				done++
				logger.Info("batch: %d/%d done (%s)", done, len(results), job.Task)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// jobsByTask groups job indexes by task, in order of first appearance.
func jobsByTask(jobs []batchJob) [][]int {
	var groups [][]int
	pos := make(map[string]int, len(jobs))
	for i, job := range jobs {
		task := strings.TrimSpace(job.Task)
		p, ok := pos[task]
		if !ok {
			p = len(groups)
			pos[task] = p
			groups = append(groups, nil)
		}
		groups[p] = append(groups[p], i)
	}
	return groups
}

func runJob(ctx context.Context, job batchJob) batchResult {
	res := batchResult{Task: job.Task, Invoice: job.Invoice}
	fail := func(err error) batchResult {
		res.err = err
		res.Error = err.Error()
		return res
	}

	if job.Task == "" || job.Invoice == "" {
		return fail(fmt.Errorf("%w: job needs task and invoice", domain.ErrInvalidInput))
	}
	data, err := os.ReadFile(job.Invoice)
	if err != nil {
		return fail(fmt.Errorf("reading invoice: %w", err))
	}
	invoice, err := domain.ParseInvoice(data)
	if err != nil {
		return fail(err)
	}
	mapping, err := resolveMapping(ctx, job.Profile, "", nil)
	if err != nil {
		return fail(err)
	}

	opts := invoiceDefaults()
	opts.Mapping = mapping.Merge(domain.FieldMapping(job.Mapping))
	setIf(&opts.UpdateDescription, job.Description)
	setIf(&opts.AutoCreateMissing, job.Create)
	setIf(&opts.ExpandLineItems, job.Expand)

	report, err := reconciler.ReconcileInvoice(ctx, job.Task, invoice, opts)
	if err != nil {
		return fail(err)
	}
	res.Report = report
	return res
}

func (j batchJob) withDefaults(d batchJob) batchJob {
	if j.Profile == "" {
		j.Profile = d.Profile
	}
	if j.Description == nil {
		j.Description = d.Description
	}
	if j.Create == nil {
		j.Create = d.Create
	}
	if j.Expand == nil {
		j.Expand = d.Expand
	}
	merged := make(map[string]string, len(d.Mapping)+len(j.Mapping))
	for k, v := range d.Mapping {
		merged[k] = v
	}
	for k, v := range j.Mapping {
		merged[k] = v
	}
	j.Mapping = merged
	return j
}

// loadManifest reads a manifest and resolves invoice paths against its directory.
func loadManifest(path string) (*batchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m batchManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %v", domain.ErrInvalidInput, path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Jobs {
		if inv := m.Jobs[i].Invoice; inv != "" && !filepath.IsAbs(inv) {
			m.Jobs[i].Invoice = filepath.Join(base, inv)
		}
	}
	return &m, nil
}

func setIf(dst, v *bool) {
	if v != nil {
		*dst = *v
	}
}
