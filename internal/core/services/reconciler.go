package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
	"github.com/custodia-labs/invoicesync/internal/logger"
)

// Ensure Reconciler implements the interface.
var _ driving.Reconciler = (*Reconciler)(nil)

// Reconciler drives reconciliation calls. It holds no per-call state and is safe
// for concurrent use on different tasks.
type Reconciler struct {
	tasks     driven.TaskManager
	inspector *SchemaInspector
	matcher   *FieldMatcher
	synth     *FieldSynthesizer
	setter    *ValueSetter
	appender  *DescriptionAppender
	expander  *SubtaskExpander
}

// NewReconciler creates a new reconciler.
func NewReconciler(tasks driven.TaskManager) *Reconciler {
	return &Reconciler{
		tasks:     tasks,
		inspector: NewSchemaInspector(tasks),
		matcher:   NewFieldMatcher(),
		synth:     NewFieldSynthesizer(tasks),
		setter:    NewValueSetter(tasks),
		appender:  NewDescriptionAppender(tasks),
		expander:  NewSubtaskExpander(tasks),
	}
}

// call is the state of one reconciliation call.
type call struct {
	task       *domain.Task
	index      *domain.SchemaIndex
	mapping    domain.FieldMapping
	autoCreate bool
	report     *domain.ReconciliationReport
	log        logger.Scope
}

func (c *call) stage(s domain.Stage) {
	c.report.Stage = s
	c.log.Stage(string(s))
}

// ReconcileInvoice writes the invoice header onto the task's custom fields, then
// optionally maintains the line-item table and the line-item subtasks.
func (r *Reconciler) ReconcileInvoice(
	ctx context.Context,
	taskID string,
	invoice *domain.InvoiceRecord,
	opts driving.ReconcileOptions,
) (*domain.ReconciliationReport, error) {
	if invoice == nil {
		return nil, fmt.Errorf("%w: invoice is required", domain.ErrInvalidInput)
	}

	c, err := r.begin(ctx, taskID, opts.Mapping, opts.AutoCreateMissing)
	if err != nil {
		return nil, err
	}

	r.applyEntries(ctx, c, c.task.ID, domain.ItemHeader, invoice.Entries())

	if opts.UpdateDescription {
		c.stage(domain.StageAppendingDescription)
		if len(invoice.LineItems) == 0 {
			c.report.SetDescription(domain.DescriptionSkipped, nil)
		} else {
			c.report.SetDescription(r.appender.Apply(ctx, c.task.ID, LineItemsRegion(invoice.LineItems)))
		}
	}

	if opts.ExpandLineItems && len(invoice.LineItems) > 0 {
		c.stage(domain.StageExpandingSubtasks)
		r.expand(ctx, c, invoice.LineItems)
	}

	c.stage(domain.StageDone)
	return c.report, nil
}

// ReconcileKeyValues writes free-form key/value pairs onto the task's custom fields.
// With UpdateDescription the pairs are also kept as a table in the description.
func (r *Reconciler) ReconcileKeyValues(
	ctx context.Context,
	taskID string,
	values map[string]domain.Value,
	opts driving.ReconcileOptions,
) (*domain.ReconciliationReport, error) {
	c, err := r.begin(ctx, taskID, opts.Mapping, opts.AutoCreateMissing)
	if err != nil {
		return nil, err
	}

	entries := domain.KeyValueEntries(values)
	r.applyEntries(ctx, c, c.task.ID, domain.ItemHeader, entries)

	if opts.UpdateDescription {
		c.stage(domain.StageAppendingDescription)
		if len(entries) == 0 {
			c.report.SetDescription(domain.DescriptionSkipped, nil)
		} else {
			c.report.SetDescription(r.appender.Apply(ctx, c.task.ID, KeyValuesRegion(entries)))
		}
	}

	c.stage(domain.StageDone)
	return c.report, nil
}

// ExpandLineItems creates or reuses one subtask per line item and writes each
// item's attributes onto its subtask.
func (r *Reconciler) ExpandLineItems(
	ctx context.Context,
	taskID string,
	invoice *domain.InvoiceRecord,
	opts driving.ExpandOptions,
) (*domain.ReconciliationReport, error) {
	if invoice == nil {
		return nil, fmt.Errorf("%w: invoice is required", domain.ErrInvalidInput)
	}

	c, err := r.begin(ctx, taskID, opts.Mapping, opts.AutoCreateMissing)
	if err != nil {
		return nil, err
	}

	if len(invoice.LineItems) > 0 {
		c.stage(domain.StageExpandingSubtasks)
		r.expand(ctx, c, invoice.LineItems)
	}

	c.stage(domain.StageDone)
	return c.report, nil
}

// InspectFields returns the custom field schema of the task's list.
func (r *Reconciler) InspectFields(ctx context.Context, taskID string) (*domain.SchemaIndex, error) {
	task, err := r.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return r.inspector.Inspect(ctx, task.ListID)
}

// begin looks up the task and reads its list schema. Both failures are fatal.
func (r *Reconciler) begin(ctx context.Context, taskID string, mapping domain.FieldMapping, autoCreate bool) (*call, error) {
	task, err := r.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	c := &call{
		task:       task,
		mapping:    mapping.Normalized(),
		autoCreate: autoCreate,
		report:     &domain.ReconciliationReport{TaskID: task.ID, ListID: task.ListID},
		log:        logger.For(task.ID),
	}
	c.stage(domain.StageInspecting)

	index, err := r.inspector.Inspect(ctx, task.ListID)
	if err != nil {
		return nil, err
	}
	c.index = index
	c.log.Debug("list %s has %d custom fields", task.ListID, index.Len())
	return c, nil
}

func (r *Reconciler) getTask(ctx context.Context, taskID string) (*domain.Task, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, fmt.Errorf("%w: task ID is required", domain.ErrInvalidInput)
	}
	task, err := r.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return task, nil
}

// applyEntries writes entries onto one task, reporting one outcome per entry.
//
// A field receives at most one key per task. Fields named directly by a mapping
// or an exact name are reserved up front, and every field written is withheld
// from synonym matching for the remaining keys.
func (r *Reconciler) applyEntries(ctx context.Context, c *call, taskID string, itemIndex int, entries []domain.Entry) {
	taken := make(map[string]bool, len(entries))
	for _, e := range entries {
		if f, ok := r.matcher.Direct(e.Key, c.index, c.mapping); ok {
			taken[f.ID] = true
		}
	}
	for _, e := range entries {
		out := r.applyEntry(ctx, c, taskID, itemIndex, e, taken)
		if out.FieldID != "" {
			taken[out.FieldID] = true
		}
		c.report.Add(out)
	}
}

// applyEntry runs resolve, create and set for one key. Every failure ends up in the outcome.
func (r *Reconciler) applyEntry(
	ctx context.Context,
	c *call,
	taskID string,
	itemIndex int,
	e domain.Entry,
	taken map[string]bool,
) domain.Outcome {
	out := domain.Outcome{
		Key:       e.Key,
		ItemIndex: itemIndex,
		TaskID:    taskID,
		Action:    domain.ActionNone,
		Value:     e.Value.String(),
	}

	c.stage(domain.StageResolving)
	valueType := InferType(e.Value, e.Hint)
	res, err := r.matcher.ResolveExcluding(e.Key, valueType, c.index, c.mapping, taken)
	if err != nil {
		c.log.Warn("%s: %v", e.Key, err)
		out.Status, out.Err = domain.StatusFailed, err
		return out
	}

	if !res.Found() {
		if !c.autoCreate {
			c.log.Debug("%s: no matching field, creation disabled", e.Key)
			out.Status, out.Err = domain.StatusNoMatch, domain.ErrNoMatch
			return out
		}
		res, err = r.create(ctx, c, e.Key, valueType, taken)
		if err != nil {
			c.log.Warn("%s: %v", e.Key, err)
			out.Status, out.Err = domain.StatusFailed, err
			return out
		}
	}

	out.Action = res.Action
	out.FieldID = res.Field.ID
	out.FieldName = res.Field.Name
	c.log.Debug("%s: %s field %q (%s)", e.Key, res.Action, res.Field.Name, res.Field.Type)

	c.stage(domain.StageSetting)
	out.Status, out.Err = r.setter.Set(ctx, taskID, res.Field, e.Value)
	switch {
	case out.Err != nil:
		c.log.Warn("%s: %v", e.Key, out.Err)
	case out.Status == domain.StatusDegraded:
		c.log.Warn("%s: %q is not a valid %s, written as text", e.Key, out.Value, res.Field.Type)
	}
	return out
}

// create synthesises a field for key. On a name conflict the schema is read again
// and the key re-matched, so a field created by another writer is reused.
func (r *Reconciler) create(
	ctx context.Context,
	c *call,
	key string,
	valueType domain.FieldType,
	taken map[string]bool,
) (Resolution, error) {
	field, err := r.synth.Create(ctx, key, valueType, c.index)
	if err == nil {
		c.log.Info("created %s field %q", field.Type, field.Name)
		return Resolution{Field: field, Action: domain.ActionCreated}, nil
	}
	if !errors.Is(err, domain.ErrFieldCreationConflict) {
		return Resolution{}, err
	}

	c.log.Debug("%s: %v, re-reading schema", key, err)
	index, ierr := r.inspector.Inspect(ctx, c.index.ListID)
	if ierr != nil {
		return Resolution{}, errors.Join(err, ierr)
	}
	c.index = index

	res, rerr := r.matcher.ResolveExcluding(key, valueType, c.index, c.mapping, taken)
	if rerr != nil {
		return Resolution{}, errors.Join(err, rerr)
	}
	if !res.Found() {
		if f, ok := c.index.Lookup(FieldName(key)); ok {
			return Resolution{Field: f, Action: domain.ActionMatched}, nil
		}
		return Resolution{}, err
	}
	return res, nil
}

// expand runs the subtask expander, then writes each item's attributes onto its subtask
// using the parent list's schema.
func (r *Reconciler) expand(ctx context.Context, c *call, items []domain.LineItem) {
	for _, t := range r.expander.Expand(ctx, c.task, items) {
		c.report.AddSubtask(t.Outcome)
		if t.Subtask == nil {
			c.log.Warn("item %d: %v", t.ItemIndex, t.Outcome.Err)
			continue
		}
		c.log.Debug("item %d: %s subtask %s", t.ItemIndex, t.Outcome.Action, t.Subtask.ID)
		r.applyEntries(ctx, c, t.Subtask.ID, t.ItemIndex, t.Item.Entries())
	}
}
