package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
)

const testInvoice = `{
	"invoice_number": "INV-001",
	"invoice_date": "2024-01-15",
	"total": 1500.00,
	"line_items": [
		{"description": "Widget", "quantity": 3, "unit_price": 10, "amount": 30},
		{"description": "Gadget", "quantity": 1, "amount": 5},
		{"description": "Cable", "amount": 2}
	]
}`

func parseTestInvoice(t *testing.T, data string) *domain.InvoiceRecord {
	t.Helper()
	inv, err := domain.ParseInvoice([]byte(data))
	require.NoError(t, err)
	return inv
}

func outcomeFor(t *testing.T, r *domain.ReconciliationReport, key string, item int) domain.Outcome {
	t.Helper()
	for _, o := range r.Outcomes {
		if o.Key == key && o.ItemIndex == item {
			return o
		}
	}
	t.Fatalf("no outcome for %s[%d]", key, item)
	return domain.Outcome{}
}

func TestReconciler_TotalMatchesExistingSynonym(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.addField("l1", field("f-total", "Total Amount", domain.FieldNumber))
	r := NewReconciler(tasks)

	report, err := r.ReconcileKeyValues(context.Background(), "t1",
		map[string]domain.Value{"total": domain.NumberValue(1500.00)}, driving.DefaultKeyValueOptions())

	require.NoError(t, err)
	o := outcomeFor(t, report, "total", domain.ItemHeader)
	assert.Equal(t, domain.ActionMatched, o.Action)
	assert.Equal(t, "f-total", o.FieldID)
	assert.Equal(t, domain.StatusWritten, o.Status)

	got, ok := tasks.value("t1", "f-total")
	require.True(t, ok)
	assert.Equal(t, 1500.00, got.Value)
	assert.Equal(t, 0, tasks.createFieldCalls)
}

func TestReconciler_FieldTakesOneKeyPerTask(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.addField("l1", field("f-tt", "Total Tax", domain.FieldNumber))
	r := NewReconciler(tasks)

	report, err := r.ReconcileInvoice(context.Background(), "t1",
		parseTestInvoice(t, `{"total": 1500, "tax": 150}`), driving.DefaultInvoiceOptions())

	require.NoError(t, err)
	tax := outcomeFor(t, report, "tax", domain.ItemHeader)
	assert.Equal(t, domain.ActionMatched, tax.Action)
	assert.Equal(t, "f-tt", tax.FieldID)
	assert.Equal(t, domain.StatusWritten, tax.Status)

	total := outcomeFor(t, report, "total", domain.ItemHeader)
	assert.Equal(t, domain.ActionCreated, total.Action)
	assert.Equal(t, "Total", total.FieldName)
	assert.NotEqual(t, "f-tt", total.FieldID)
	assert.Equal(t, domain.StatusWritten, total.Status)

	got, ok := tasks.value("t1", "f-tt")
	require.True(t, ok)
	assert.Equal(t, 150.0, got.Value)

	got, ok = tasks.value("t1", total.FieldID)
	require.True(t, ok)
	assert.Equal(t, 1500.0, got.Value)
}

func TestReconciler_TakenFieldWithoutCreateIsNoMatch(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.addField("l1", field("f-tt", "Total Tax", domain.FieldNumber))
	r := NewReconciler(tasks)

	report, err := r.ReconcileInvoice(context.Background(), "t1",
		parseTestInvoice(t, `{"total": 1500, "tax": 150}`), driving.ReconcileOptions{})

	require.NoError(t, err)
	assert.Equal(t, "f-tt", outcomeFor(t, report, "tax", domain.ItemHeader).FieldID)

	total := outcomeFor(t, report, "total", domain.ItemHeader)
	assert.Equal(t, domain.StatusNoMatch, total.Status)
	assert.Empty(t, total.FieldID)

	got, ok := tasks.value("t1", "f-tt")
	require.True(t, ok)
	assert.Equal(t, 150.0, got.Value)
	assert.Equal(t, 0, tasks.createFieldCalls)
}

func TestReconciler_ExactNameIsReservedBeforeSynonyms(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.addField("l1", field("f-tt", "Total Tax", domain.FieldNumber))
	r := NewReconciler(tasks)

	// "total" sorts first but must not take the field named exactly after "total_tax".
	report, err := r.ReconcileKeyValues(context.Background(), "t1", map[string]domain.Value{
		"total":     domain.NumberValue(1500),
		"total_tax": domain.NumberValue(150),
	}, driving.ReconcileOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusNoMatch, outcomeFor(t, report, "total", domain.ItemHeader).Status)
	assert.Equal(t, "f-tt", outcomeFor(t, report, "total_tax", domain.ItemHeader).FieldID)

	got, ok := tasks.value("t1", "f-tt")
	require.True(t, ok)
	assert.Equal(t, 150.0, got.Value)
}

func TestReconciler_CreatesMissingDateField(t *testing.T) {
	tasks := newFakeTaskManager()
	r := NewReconciler(tasks)

	report, err := r.ReconcileInvoice(context.Background(), "t1",
		parseTestInvoice(t, `{"due_date": "2024-02-15"}`), driving.DefaultInvoiceOptions())

	require.NoError(t, err)
	o := outcomeFor(t, report, "due_date", domain.ItemHeader)
	assert.Equal(t, domain.ActionCreated, o.Action)
	assert.Equal(t, "Due Date", o.FieldName)
	assert.Equal(t, domain.StatusWritten, o.Status)

	require.Len(t, tasks.fields["l1"], 1)
	assert.Equal(t, domain.FieldDate, tasks.fields["l1"][0].Type)

	got, ok := tasks.value("t1", o.FieldID)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC).UnixMilli(), got.Value)

	// No line items means no table.
	require.NotNil(t, report.Description)
	assert.Equal(t, domain.DescriptionSkipped, report.Description.Status)
	assert.Equal(t, 0, tasks.descriptionWrites)
}

func TestReconciler_NoAutoCreateMeansNoMutation(t *testing.T) {
	tasks := newFakeTaskManager()
	r := NewReconciler(tasks)

	report, err := r.ReconcileInvoice(context.Background(), "t1",
		parseTestInvoice(t, `{"po_number": "PO-7", "total": 10}`),
		driving.ReconcileOptions{AutoCreateMissing: false})

	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	for _, o := range report.Outcomes {
		assert.Equal(t, domain.StatusNoMatch, o.Status)
		assert.Equal(t, domain.ActionNone, o.Action)
		assert.ErrorIs(t, o.Err, domain.ErrNoMatch)
	}
	assert.Equal(t, 0, tasks.mutations())
	assert.False(t, report.HasFailures())
}

func TestReconciler_MappingBypassesMatching(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.addField("l1", field("f-total", "Total", domain.FieldNumber))
	tasks.addField("l1", field("f-gross", "Gross", domain.FieldNumber))
	r := NewReconciler(tasks)

	opts := driving.DefaultKeyValueOptions()
	opts.Mapping = domain.FieldMapping{"Total": "Gross"}
	report, err := r.ReconcileKeyValues(context.Background(), "t1",
		map[string]domain.Value{"total": domain.NumberValue(99)}, opts)

	require.NoError(t, err)
	o := outcomeFor(t, report, "total", domain.ItemHeader)
	assert.Equal(t, domain.ActionMapped, o.Action)
	assert.Equal(t, "f-gross", o.FieldID)

	_, wroteExact := tasks.value("t1", "f-total")
	assert.False(t, wroteExact)
}

func TestReconciler_UnknownMappingReferenceFailsOnlyThatKey(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.addField("l1", field("f-vendor", "Vendor Name", domain.FieldShortText))
	r := NewReconciler(tasks)

	opts := driving.DefaultKeyValueOptions()
	opts.Mapping = domain.FieldMapping{"total": "does-not-exist"}
	report, err := r.ReconcileKeyValues(context.Background(), "t1", map[string]domain.Value{
		"total":       domain.NumberValue(99),
		"vendor_name": domain.StringValue("Acme"),
	}, opts)

	require.NoError(t, err)
	total := outcomeFor(t, report, "total", domain.ItemHeader)
	assert.Equal(t, domain.StatusFailed, total.Status)
	assert.ErrorIs(t, total.Err, domain.ErrUnknownFieldReference)
	assert.Equal(t, "99", total.Value, "the value is kept in the report")

	vendor := outcomeFor(t, report, "vendor_name", domain.ItemHeader)
	assert.Equal(t, domain.StatusWritten, vendor.Status)
	assert.Equal(t, 0, tasks.createFieldCalls)
}

func TestReconciler_PartialFailure(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.addField("l1", field("f-num", "Invoice Number", domain.FieldShortText))
	tasks.addField("l1", field("f-date", "Invoice Date", domain.FieldDate))
	tasks.addField("l1", field("f-total", "Total", domain.FieldNumber))
	tasks.setErrs["f-date"] = domain.ErrValueRejected
	r := NewReconciler(tasks)

	report, err := r.ReconcileInvoice(context.Background(), "t1",
		parseTestInvoice(t, `{"invoice_number": "INV-1", "invoice_date": "2024-01-15", "total": 3}`),
		driving.DefaultInvoiceOptions())

	require.NoError(t, err, "per-key failures never escape the call")
	assert.Len(t, report.Outcomes, 3)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 2, report.Succeeded())
	assert.ErrorIs(t, report.Err(), domain.ErrPartialFailure)
	assert.ErrorIs(t, report.Err(), domain.ErrValueRejected)
	assert.Equal(t, domain.StageDone, report.Stage)
}

func TestReconciler_ExpandLineItemsIsIdempotent(t *testing.T) {
	tasks := newFakeTaskManager()
	r := NewReconciler(tasks)
	inv := parseTestInvoice(t, testInvoice)
	opts := driving.ExpandOptions{AutoCreateMissing: true}
	ctx := context.Background()

	first, err := r.ExpandLineItems(ctx, "t1", inv, opts)
	require.NoError(t, err)
	require.Len(t, first.Subtasks, 3)
	for _, s := range first.Subtasks {
		assert.Equal(t, domain.SubtaskCreated, s.Action)
	}
	assert.Empty(t, first.Outcomes[0].Err)
	fieldsAfterFirst := len(tasks.fields["l1"])

	second, err := r.ExpandLineItems(ctx, "t1", inv, opts)
	require.NoError(t, err)
	require.Len(t, second.Subtasks, 3)
	for i, s := range second.Subtasks {
		assert.Equal(t, domain.SubtaskReused, s.Action)
		assert.Equal(t, first.Subtasks[i].SubtaskID, s.SubtaskID)
	}

	assert.Len(t, tasks.subtasks("t1"), 3)
	assert.Equal(t, fieldsAfterFirst, len(tasks.fields["l1"]))
	assert.Equal(t, 0, second.Created())

	// Item attributes are written to the subtask, not the parent.
	widget := outcomeFor(t, second, domain.KeyQuantity, 0)
	assert.Equal(t, first.Subtasks[0].SubtaskID, widget.TaskID)
	got, ok := tasks.value(widget.TaskID, widget.FieldID)
	require.True(t, ok)
	assert.Equal(t, float64(3), got.Value)
}

func TestReconciler_ReconcileInvoiceTwiceIsIdempotent(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.tasks["t1"].Description = "Forwarded from accounts@."
	r := NewReconciler(tasks)
	inv := parseTestInvoice(t, testInvoice)
	opts := driving.DefaultInvoiceOptions()
	opts.ExpandLineItems = true
	ctx := context.Background()

	first, err := r.ReconcileInvoice(ctx, "t1", inv, opts)
	require.NoError(t, err)
	assert.False(t, first.HasFailures())
	assert.Equal(t, domain.DescriptionAppended, first.Description.Status)
	fields := len(tasks.fields["l1"])
	values := len(tasks.values["t1"])

	second, err := r.ReconcileInvoice(ctx, "t1", inv, opts)
	require.NoError(t, err)
	assert.False(t, second.HasFailures())
	assert.Equal(t, domain.DescriptionUnchanged, second.Description.Status)
	assert.Equal(t, 0, second.Created())

	assert.Equal(t, fields, len(tasks.fields["l1"]))
	assert.Equal(t, values, len(tasks.values["t1"]))
	assert.Len(t, tasks.subtasks("t1"), 3)
	assert.Equal(t, 1, tasks.descriptionWrites)

	desc := tasks.tasks["t1"].Description
	assert.Equal(t, 1, strings.Count(desc, "invoicesync:line-items:start"))
	assert.True(t, strings.HasPrefix(desc, "Forwarded from accounts@."))
}

func TestReconciler_CreationConflictRematches(t *testing.T) {
	tasks := newFakeTaskManager()
	raced := false
	tasks.beforeCreateField = func(listID, name string) {
		if !raced {
			raced = true
			tasks.addField(listID, field("f-other", name, domain.FieldNumber))
		}
	}
	r := NewReconciler(tasks)

	report, err := r.ReconcileKeyValues(context.Background(), "t1",
		map[string]domain.Value{"subtotal": domain.NumberValue(12)}, driving.DefaultKeyValueOptions())

	require.NoError(t, err)
	o := outcomeFor(t, report, "subtotal", domain.ItemHeader)
	assert.Equal(t, domain.ActionMatched, o.Action)
	assert.Equal(t, "f-other", o.FieldID)
	assert.Equal(t, domain.StatusWritten, o.Status)
	assert.Equal(t, 2, tasks.listFieldsCalls, "schema is read again after the conflict")
	assert.Len(t, tasks.fields["l1"], 1)
}

func TestReconciler_CreatedFieldsAreReusedWithinCall(t *testing.T) {
	tasks := newFakeTaskManager()
	r := NewReconciler(tasks)

	report, err := r.ReconcileKeyValues(context.Background(), "t1", map[string]domain.Value{
		"Shipping Cost": domain.StringValue("12.00"),
		"shippingCost":  domain.StringValue("13.00"),
	}, driving.DefaultKeyValueOptions())

	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1, "keys that normalise alike are one key")
	assert.Equal(t, 1, tasks.createFieldCalls)
	assert.Equal(t, domain.FieldNumber, tasks.fields["l1"][0].Type)
}

func TestReconciler_KeyValuesDescription(t *testing.T) {
	tasks := newFakeTaskManager()
	r := NewReconciler(tasks)

	opts := driving.DefaultKeyValueOptions()
	opts.UpdateDescription = true
	report, err := r.ReconcileKeyValues(context.Background(), "t1",
		map[string]domain.Value{"payment_terms": domain.StringValue("Net 30")}, opts)

	require.NoError(t, err)
	assert.Equal(t, domain.DescriptionAppended, report.Description.Status)
	assert.Contains(t, tasks.tasks["t1"].Description, "| Payment Terms | Net 30 |")
}

func TestReconciler_FatalErrors(t *testing.T) {
	ctx := context.Background()
	inv := parseTestInvoice(t, testInvoice)

	t.Run("task not found", func(t *testing.T) {
		r := NewReconciler(newFakeTaskManager())
		_, err := r.ReconcileInvoice(ctx, "missing", inv, driving.DefaultInvoiceOptions())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("schema unavailable", func(t *testing.T) {
		tasks := newFakeTaskManager()
		tasks.listFieldsErr = domain.ErrRemoteUnavailable
		r := NewReconciler(tasks)

		report, err := r.ReconcileInvoice(ctx, "t1", inv, driving.DefaultInvoiceOptions())
		assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
		assert.Nil(t, report)
		assert.Equal(t, 0, tasks.mutations())
	})

	t.Run("invalid input", func(t *testing.T) {
		r := NewReconciler(newFakeTaskManager())
		_, err := r.ReconcileInvoice(ctx, " ", inv, driving.DefaultInvoiceOptions())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = r.ReconcileInvoice(ctx, "t1", nil, driving.DefaultInvoiceOptions())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestReconciler_InspectFields(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.addField("l1", field("f1", "Total", domain.FieldNumber))
	r := NewReconciler(tasks)

	idx, err := r.InspectFields(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, "l1", idx.ListID)
	assert.Equal(t, 1, idx.Len())
}
