package driving

import (
	"context"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// ReconcileOptions controls one reconciliation call.
type ReconcileOptions struct {
	// Mapping overrides automatic matching for the keys it names.
	Mapping domain.FieldMapping

	// UpdateDescription appends the line-item table to the task description.
	UpdateDescription bool

	// AutoCreateMissing creates fields for keys that match nothing.
	AutoCreateMissing bool

	// ExpandLineItems also creates one subtask per line item.
	ExpandLineItems bool
}

// DefaultInvoiceOptions returns the defaults for ReconcileInvoice.
func DefaultInvoiceOptions() ReconcileOptions {
	return ReconcileOptions{UpdateDescription: true, AutoCreateMissing: true}
}

// DefaultKeyValueOptions returns the defaults for ReconcileKeyValues.
func DefaultKeyValueOptions() ReconcileOptions {
	return ReconcileOptions{AutoCreateMissing: true}
}

// ExpandOptions controls subtask expansion.
type ExpandOptions struct {
	// Mapping overrides automatic matching for item keys.
	Mapping domain.FieldMapping

	// AutoCreateMissing creates fields for item keys that match nothing.
	AutoCreateMissing bool
}

// Reconciler reconciles extracted invoice data onto tasks.
//
// A returned error means the call could not start or its schema could not be
// read (domain.ErrNotFound, domain.ErrRemoteUnavailable). Per-key and per-item
// failures are reported in the returned report instead.
type Reconciler interface {
	// ReconcileInvoice writes the invoice header onto the task's custom fields,
	// optionally maintains the line-item table and subtasks.
	ReconcileInvoice(ctx context.Context, taskID string, invoice *domain.InvoiceRecord, opts ReconcileOptions) (*domain.ReconciliationReport, error)

	// ReconcileKeyValues writes free-form key/value pairs onto the task.
	// UpdateDescription keeps the pairs as a table in the description;
	// ExpandLineItems is ignored.
	ReconcileKeyValues(ctx context.Context, taskID string, values map[string]domain.Value, opts ReconcileOptions) (*domain.ReconciliationReport, error)

	// ExpandLineItems creates or reuses one subtask per line item and writes
	// the item attributes onto it.
	ExpandLineItems(ctx context.Context, taskID string, invoice *domain.InvoiceRecord, opts ExpandOptions) (*domain.ReconciliationReport, error)

	// InspectFields returns the custom field schema of the task's list.
	InspectFields(ctx context.Context, taskID string) (*domain.SchemaIndex, error)
}
