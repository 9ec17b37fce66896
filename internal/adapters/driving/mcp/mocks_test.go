package mcp

import (
	"context"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
)

// mockReconciler is a mock implementation of driving.Reconciler.
type mockReconciler struct {
	report *domain.ReconciliationReport
	schema *domain.SchemaIndex
	err    error

	// Captured arguments.
	taskID    string
	invoice   *domain.InvoiceRecord
	values    map[string]domain.Value
	opts      driving.ReconcileOptions
	expandOpt driving.ExpandOptions
}

func (m *mockReconciler) ReconcileInvoice(
	_ context.Context,
	taskID string,
	invoice *domain.InvoiceRecord,
	opts driving.ReconcileOptions,
) (*domain.ReconciliationReport, error) {
	m.taskID, m.invoice, m.opts = taskID, invoice, opts
	return m.result(taskID)
}

func (m *mockReconciler) ReconcileKeyValues(
	_ context.Context,
	taskID string,
	values map[string]domain.Value,
	opts driving.ReconcileOptions,
) (*domain.ReconciliationReport, error) {
	m.taskID, m.values, m.opts = taskID, values, opts
	return m.result(taskID)
}

func (m *mockReconciler) ExpandLineItems(
	_ context.Context,
	taskID string,
	invoice *domain.InvoiceRecord,
	opts driving.ExpandOptions,
) (*domain.ReconciliationReport, error) {
	m.taskID, m.invoice, m.expandOpt = taskID, invoice, opts
	return m.result(taskID)
}

func (m *mockReconciler) InspectFields(_ context.Context, taskID string) (*domain.SchemaIndex, error) {
	m.taskID = taskID
	return m.schema, m.err
}

func (m *mockReconciler) result(taskID string) (*domain.ReconciliationReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.report != nil {
		return m.report, nil
	}
	return &domain.ReconciliationReport{TaskID: taskID, Stage: domain.StageDone}, nil
}

// mockMappingService is a mock implementation of driving.MappingService.
type mockMappingService struct {
	profiles []domain.MappingProfile
	err      error
}

func (m *mockMappingService) Set(
	_ context.Context, name, listID string, mapping domain.FieldMapping,
) (*domain.MappingProfile, error) {
	return &domain.MappingProfile{Name: name, ListID: listID, Mapping: mapping}, m.err
}

func (m *mockMappingService) Get(_ context.Context, name string) (*domain.MappingProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.profiles {
		if m.profiles[i].Name == name {
			return &m.profiles[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockMappingService) List(_ context.Context) ([]domain.MappingProfile, error) {
	return m.profiles, m.err
}

func (m *mockMappingService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockMappingService) Resolve(
	ctx context.Context, name string, overrides domain.FieldMapping,
) (domain.FieldMapping, error) {
	if name == "" {
		return overrides.Normalized(), nil
	}
	p, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Mapping.Merge(overrides), nil
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings domain.AppSettings
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return m.err }
func (m *mockSettingsService) SetToken(_ string) error         { return m.err }
func (m *mockSettingsService) Set(_, _ string) error           { return m.err }
func (m *mockSettingsService) Keys() []string                  { return nil }
func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) Validate() error                 { return m.err }
