package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
	"github.com/custodia-labs/invoicesync/internal/logger"
)

// InvoiceInput is the input schema for the reconcile_invoice and expand_line_items tools.
type InvoiceInput struct {
	TaskID            string            `json:"task_id" jsonschema:"the ClickUp task to write onto"`
	Invoice           map[string]any    `json:"invoice,omitempty" jsonschema:"the extracted invoice as a JSON object"`
	InvoiceJSON       string            `json:"invoice_json,omitempty" jsonschema:"the extracted invoice as JSON text, used when invoice is absent"`
	FieldMap          map[string]string `json:"field_map,omitempty" jsonschema:"explicit overrides from invoice key to field name or field ID"`
	Profile           string            `json:"profile,omitempty" jsonschema:"name of a saved mapping profile to apply before field_map"`
	UpdateDescription *bool             `json:"update_description,omitempty" jsonschema:"append the line-item table to the task description (default true)"`
	AutoCreateMissing *bool             `json:"auto_create_missing,omitempty" jsonschema:"create custom fields for keys that match nothing (default true)"`
	ExpandLineItems   *bool             `json:"expand_line_items,omitempty" jsonschema:"also create one subtask per line item (default false)"`
}

// KeyValuesInput is the input schema for the reconcile_key_values tool.
type KeyValuesInput struct {
	TaskID            string            `json:"task_id" jsonschema:"the ClickUp task to write onto"`
	Values            map[string]any    `json:"values" jsonschema:"key to scalar value pairs to write"`
	FieldMap          map[string]string `json:"field_map,omitempty" jsonschema:"explicit overrides from key to field name or field ID"`
	Profile           string            `json:"profile,omitempty" jsonschema:"name of a saved mapping profile to apply before field_map"`
	UpdateDescription *bool             `json:"update_description,omitempty" jsonschema:"also keep the pairs as a table in the task description (default false)"`
	AutoCreateMissing *bool             `json:"auto_create_missing,omitempty" jsonschema:"create custom fields for keys that match nothing (default true)"`
}

// TaskInput is the input schema for tools that only need a task.
type TaskInput struct {
	TaskID string `json:"task_id" jsonschema:"the ClickUp task whose list is inspected"`
}

// ReportOutput is the output schema for the reconciliation tools.
type ReportOutput struct {
	Summary string                       `json:"summary"`
	Written int                          `json:"written"`
	Created int                          `json:"created"`
	Failed  int                          `json:"failed"`
	Report  *domain.ReconciliationReport `json:"report"`
}

// FieldsOutput is the output schema for the inspect_fields tool.
type FieldsOutput struct {
	ListID string                   `json:"list_id"`
	Fields []domain.FieldDescriptor `json:"fields"`
	Count  int                      `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "reconcile_invoice",
		Description: "Write an extracted invoice onto a ClickUp task: match or create custom fields " +
			"for the header values and keep a line-item table in the task description",
	}, s.handleReconcileInvoice)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reconcile_key_values",
		Description: "Write free-form key/value pairs onto a ClickUp task's custom fields",
	}, s.handleReconcileKeyValues)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "expand_line_items",
		Description: "Create or reuse one subtask per invoice line item and write the item values onto it",
	}, s.handleExpandLineItems)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "inspect_fields",
		Description: "List the custom fields available on a task's list",
	}, s.handleInspectFields)
}

// handleReconcileInvoice handles the reconcile_invoice tool invocation.
func (s *Server) handleReconcileInvoice(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InvoiceInput,
) (*mcp.CallToolResult, ReportOutput, error) {
	if err := requireTask(input.TaskID); err != nil {
		return nil, ReportOutput{}, err
	}
	invoice, err := input.invoice()
	if err != nil {
		return nil, ReportOutput{}, err
	}
	mapping, err := s.resolveMapping(ctx, input.Profile, input.FieldMap)
	if err != nil {
		return nil, ReportOutput{}, err
	}

	opts := s.invoiceOptions()
	opts.Mapping = mapping
	override(&opts.UpdateDescription, input.UpdateDescription)
	override(&opts.AutoCreateMissing, input.AutoCreateMissing)
	override(&opts.ExpandLineItems, input.ExpandLineItems)

	report, err := s.ports.Reconciler.ReconcileInvoice(ctx, input.TaskID, invoice, opts)
	if err != nil {
		return nil, ReportOutput{}, err
	}
	return nil, reportOutput(report), nil
}

// handleReconcileKeyValues handles the reconcile_key_values tool invocation.
func (s *Server) handleReconcileKeyValues(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input KeyValuesInput,
) (*mcp.CallToolResult, ReportOutput, error) {
	if err := requireTask(input.TaskID); err != nil {
		return nil, ReportOutput{}, err
	}
	values, err := toValues(input.Values)
	if err != nil {
		return nil, ReportOutput{}, err
	}
	mapping, err := s.resolveMapping(ctx, input.Profile, input.FieldMap)
	if err != nil {
		return nil, ReportOutput{}, err
	}

	opts := s.keyValueOptions()
	opts.Mapping = mapping
	override(&opts.UpdateDescription, input.UpdateDescription)
	override(&opts.AutoCreateMissing, input.AutoCreateMissing)

	report, err := s.ports.Reconciler.ReconcileKeyValues(ctx, input.TaskID, values, opts)
	if err != nil {
		return nil, ReportOutput{}, err
	}
	return nil, reportOutput(report), nil
}

// handleExpandLineItems handles the expand_line_items tool invocation.
func (s *Server) handleExpandLineItems(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InvoiceInput,
) (*mcp.CallToolResult, ReportOutput, error) {
	if err := requireTask(input.TaskID); err != nil {
		return nil, ReportOutput{}, err
	}
	invoice, err := input.invoice()
	if err != nil {
		return nil, ReportOutput{}, err
	}
	mapping, err := s.resolveMapping(ctx, input.Profile, input.FieldMap)
	if err != nil {
		return nil, ReportOutput{}, err
	}

	opts := driving.ExpandOptions{
		Mapping:           mapping,
		AutoCreateMissing: s.keyValueOptions().AutoCreateMissing,
	}
	override(&opts.AutoCreateMissing, input.AutoCreateMissing)

	report, err := s.ports.Reconciler.ExpandLineItems(ctx, input.TaskID, invoice, opts)
	if err != nil {
		return nil, ReportOutput{}, err
	}
	return nil, reportOutput(report), nil
}

// handleInspectFields handles the inspect_fields tool invocation.
func (s *Server) handleInspectFields(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TaskInput,
) (*mcp.CallToolResult, FieldsOutput, error) {
	if err := requireTask(input.TaskID); err != nil {
		return nil, FieldsOutput{}, err
	}

	schema, err := s.ports.Reconciler.InspectFields(ctx, input.TaskID)
	if err != nil {
		return nil, FieldsOutput{}, err
	}

	fields := schema.Fields()
	return nil, FieldsOutput{
		ListID: schema.ListID,
		Fields: fields,
		Count:  len(fields),
	}, nil
}

// reconcileSettings returns the configured reconcile defaults, or nil when none are available.
func (s *Server) reconcileSettings() *domain.ReconcileSettings {
	if s.ports.Settings == nil {
		return nil
	}
	settings, err := s.ports.Settings.Get()
	if err != nil {
		logger.Warn("mcp: reading settings: %v", err)
		return nil
	}
	return &settings.Reconcile
}

func (s *Server) invoiceOptions() driving.ReconcileOptions {
	opts := driving.DefaultInvoiceOptions()
	if rs := s.reconcileSettings(); rs != nil {
		opts.UpdateDescription = rs.UpdateDescription
		opts.AutoCreateMissing = rs.AutoCreateMissing
		opts.ExpandLineItems = rs.ExpandLineItems
	}
	return opts
}

func (s *Server) keyValueOptions() driving.ReconcileOptions {
	opts := driving.DefaultKeyValueOptions()
	if rs := s.reconcileSettings(); rs != nil {
		opts.AutoCreateMissing = rs.AutoCreateMissing
	}
	return opts
}

// resolveMapping merges the named profile with the per-call overrides.
func (s *Server) resolveMapping(ctx context.Context, profile string, overrides map[string]string) (domain.FieldMapping, error) {
	if s.ports.Mappings == nil {
		if profile != "" {
			return nil, fmt.Errorf("profile %q: %w", profile, ErrMappingsUnavailable)
		}
		return domain.FieldMapping(overrides).Normalized(), nil
	}
	return s.ports.Mappings.Resolve(ctx, profile, domain.FieldMapping(overrides))
}

// invoice decodes the invoice from either the object or the text form.
func (in InvoiceInput) invoice() (*domain.InvoiceRecord, error) {
	if in.Invoice != nil {
		data, err := json.Marshal(in.Invoice)
		if err != nil {
			return nil, fmt.Errorf("encoding invoice: %w", err)
		}
		return domain.ParseInvoice(data)
	}
	text := trimCodeFence(in.InvoiceJSON)
	if text == "" {
		return nil, ErrMissingInvoice
	}
	return domain.ParseInvoice([]byte(text))
}

// trimCodeFence strips a surrounding ``` or ```json fence.
func trimCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// toValues converts decoded JSON scalars into values. Nested objects and arrays are rejected.
func toValues(in map[string]any) (map[string]domain.Value, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: values are required", domain.ErrInvalidInput)
	}
	out := make(map[string]domain.Value, len(in))
	for key, raw := range in {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", key, err)
		}
		var v domain.Value
		if err := v.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("value %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func requireTask(taskID string) error {
	if strings.TrimSpace(taskID) == "" {
		return fmt.Errorf("%w: task_id is required", domain.ErrInvalidInput)
	}
	return nil
}

func override(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func reportOutput(report *domain.ReconciliationReport) ReportOutput {
	return ReportOutput{
		Summary: report.Summary(),
		Written: report.Succeeded(),
		Created: report.Created(),
		Failed:  report.Failed(),
		Report:  report,
	}
}
