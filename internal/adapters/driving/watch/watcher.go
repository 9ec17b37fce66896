// Package watch reconciles invoice files dropped into a directory.
//
// A file named <task-id>.json is reconciled onto that task once it has stopped
// changing for the debounce interval. Afterwards it is moved to done/ or
// failed/ together with a <task-id>.report.json holding the report.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
	"github.com/custodia-labs/invoicesync/internal/logger"
)

const (
	// DoneDir receives files whose reconciliation finished without failures.
	DoneDir = "done"

	// FailedDir receives files that could not be parsed or reconciled, or
	// whose report contains failures.
	FailedDir = "failed"

	invoiceExt = ".json"
	reportExt  = ".report.json"
)

// Result is the outcome of one processed file.
type Result struct {
	Path   string
	TaskID string
	Report *domain.ReconciliationReport
	Err    error
}

// Options configures a Watcher.
type Options struct {
	// Debounce is how long a file must stay unchanged before it is processed.
	// Zero means domain.DefaultWatchDebounce.
	Debounce time.Duration

	// Reconcile is passed to every ReconcileInvoice call.
	Reconcile driving.ReconcileOptions

	// ProcessExisting also processes files already present when Run starts.
	ProcessExisting bool

	// OnResult is called after each file. Optional.
	OnResult func(Result)
}

// Watcher reconciles invoice files as they appear in a directory.
type Watcher struct {
	dir        string
	reconciler driving.Reconciler
	opts       Options

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup

	// process serialises reconciliation so files never race each other.
	process sync.Mutex
}

// New creates a watcher for dir. The done and failed subdirectories are created.
func New(dir string, reconciler driving.Reconciler, opts Options) (*Watcher, error) {
	if reconciler == nil {
		return nil, errors.New("watch: reconciler is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", dir)
	}
	for _, sub := range []string{DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("watch: creating %s: %w", sub, err)
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = domain.DefaultWatchDebounce
	}

	return &Watcher{
		dir:        dir,
		reconciler: reconciler,
		opts:       opts,
		pending:    make(map[string]*time.Timer),
	}, nil
}

// Run watches the directory until ctx is cancelled.
// Files still waiting for their debounce interval are left in place.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: adding %s: %w", w.dir, err)
	}
	logger.Info("watch: watching %s", w.dir)

	defer w.stop()
	if w.opts.ProcessExisting {
		if err := w.scheduleExisting(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.handleFsEvent(event); ok {
				w.schedule(ctx, path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		}
	}
}

// handleFsEvent returns the invoice file an event concerns, if any.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if !isInvoiceFile(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) scheduleExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("watch: reading %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && isInvoiceFile(e.Name()) {
			w.schedule(ctx, filepath.Join(w.dir, e.Name()))
		}
	}
	return nil
}

// schedule (re)starts the debounce timer of path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.opts.Debounce)
		return
	}

	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.opts.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.handle(ctx, path)
	})
	w.pending[path] = t
}

// stop cancels pending timers and waits for files being processed.
func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// handle reconciles one file and files it away.
func (w *Watcher) handle(ctx context.Context, path string) {
	w.process.Lock()
	defer w.process.Unlock()

	if ctx.Err() != nil {
		return
	}

	res := w.reconcile(ctx, path)
	if errors.Is(res.Err, os.ErrNotExist) {
		return
	}
	if ctx.Err() != nil {
		// Interrupted calls are retried on the next run.
		return
	}

	failed := res.Err != nil || (res.Report != nil && res.Report.HasFailures())
	if err := w.archive(path, res.Report, failed); err != nil {
		logger.Warn("watch: %v", err)
	}

	if res.Err != nil {
		logger.Warn("watch: %s: %v", filepath.Base(path), res.Err)
	} else {
		logger.For(res.TaskID).Info("%s", res.Report.Summary())
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res)
	}
}

func (w *Watcher) reconcile(ctx context.Context, path string) Result {
	res := Result{Path: path, TaskID: TaskID(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	invoice, err := domain.ParseInvoice(data)
	if err != nil {
		res.Err = err
		return res
	}
	res.Report, res.Err = w.reconciler.ReconcileInvoice(ctx, res.TaskID, invoice, w.opts.Reconcile)
	return res
}

// archive moves the file to done/ or failed/ and writes the report next to it.
func (w *Watcher) archive(path string, report *domain.ReconciliationReport, failed bool) error {
	sub := DoneDir
	if failed {
		sub = FailedDir
	}
	base := filepath.Base(path)
	dest := filepath.Join(w.dir, sub, base)

	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("moving %s: %w", base, err)
	}
	if report == nil {
		return nil
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report for %s: %w", base, err)
	}
	reportPath := strings.TrimSuffix(dest, filepath.Ext(dest)) + reportExt
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return fmt.Errorf("writing report for %s: %w", base, err)
	}
	return nil
}

// TaskID returns the task a file is addressed to: its name without extension.
func TaskID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isInvoiceFile(path string) bool {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	switch {
	case strings.HasPrefix(base, "."):
		return false
	case !strings.HasSuffix(lower, invoiceExt):
		return false
	case strings.HasSuffix(lower, reportExt):
		return false
	default:
		return TaskID(base) != ""
	}
}
