package cli

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
)

// mockReconciler is a mock implementation of driving.Reconciler.
// It is safe for concurrent use by the batch command.
type mockReconciler struct {
	mu sync.Mutex

	schema *domain.SchemaIndex
	err    error
	// failing lists tasks whose report gets a failed outcome.
	failing map[string]bool

	// Captured arguments of the last call.
	taskIDs   []string
	invoice   *domain.InvoiceRecord
	values    map[string]domain.Value
	opts      driving.ReconcileOptions
	expandOpt driving.ExpandOptions
	byTask    map[string]driving.ReconcileOptions

	// delay holds each invoice call so overlapping calls can be observed.
	delay    time.Duration
	flight   sync.Mutex
	active   map[string]int
	overlaps int
}

func (m *mockReconciler) ReconcileInvoice(
	_ context.Context,
	taskID string,
	invoice *domain.InvoiceRecord,
	opts driving.ReconcileOptions,
) (*domain.ReconciliationReport, error) {
	defer m.enter(taskID)()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoice, m.opts = invoice, opts
	if m.byTask == nil {
		m.byTask = make(map[string]driving.ReconcileOptions)
	}
	m.byTask[taskID] = opts
	return m.result(taskID)
}

func (m *mockReconciler) ReconcileKeyValues(
	_ context.Context,
	taskID string,
	values map[string]domain.Value,
	opts driving.ReconcileOptions,
) (*domain.ReconciliationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values, m.opts = values, opts
	return m.result(taskID)
}

func (m *mockReconciler) ExpandLineItems(
	_ context.Context,
	taskID string,
	invoice *domain.InvoiceRecord,
	opts driving.ExpandOptions,
) (*domain.ReconciliationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoice, m.expandOpt = invoice, opts
	return m.result(taskID)
}

func (m *mockReconciler) InspectFields(_ context.Context, taskID string) (*domain.SchemaIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskIDs = append(m.taskIDs, taskID)
	return m.schema, m.err
}

func (m *mockReconciler) result(taskID string) (*domain.ReconciliationReport, error) {
	m.taskIDs = append(m.taskIDs, taskID)
	if m.err != nil {
		return nil, m.err
	}

	report := &domain.ReconciliationReport{TaskID: taskID, ListID: "list-1", Stage: domain.StageDone}
	report.Add(domain.Outcome{
		Key:       domain.KeyTotal,
		ItemIndex: domain.ItemHeader,
		FieldID:   "cf-total",
		FieldName: "Total",
		Action:    domain.ActionMatched,
		Status:    domain.StatusWritten,
		Value:     "42",
	})
	if m.failing[taskID] {
		report.Add(domain.Outcome{
			Key:       domain.KeyDueDate,
			ItemIndex: domain.ItemHeader,
			Action:    domain.ActionNone,
			Status:    domain.StatusFailed,
			Value:     "soon",
			Err:       domain.ErrInvalidInput,
		})
	}
	return report, nil
}

// enter marks a call on taskID in flight for delay and returns the matching exit.
func (m *mockReconciler) enter(taskID string) func() {
	m.flight.Lock()
	if m.active == nil {
		m.active = make(map[string]int)
	}
	m.active[taskID]++
	if m.active[taskID] > 1 {
		m.overlaps++
	}
	m.flight.Unlock()

	time.Sleep(m.delay)
	return func() {
		m.flight.Lock()
		m.active[taskID]--
		m.flight.Unlock()
	}
}

func (m *mockReconciler) sameTaskOverlaps() int {
	m.flight.Lock()
	defer m.flight.Unlock()
	return m.overlaps
}

func (m *mockReconciler) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.taskIDs...)
}

// mockMappingService is a mock implementation of driving.MappingService.
type mockMappingService struct {
	profiles []domain.MappingProfile
	err      error

	saved   *domain.MappingProfile
	deleted string
}

func (m *mockMappingService) Set(
	_ context.Context, name, listID string, mapping domain.FieldMapping,
) (*domain.MappingProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.saved = &domain.MappingProfile{Name: name, ListID: listID, Mapping: mapping.Normalized()}
	return m.saved, nil
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

func (m *mockMappingService) Delete(_ context.Context, name string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = name
	return nil
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
	settings    domain.AppSettings
	err         error
	validateErr error

	token string
	set   map[string]string
}

func newMockSettings() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return m.err }

func (m *mockSettingsService) SetToken(token string) error {
	if m.err != nil {
		return m.err
	}
	m.token = token
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.set == nil {
		m.set = make(map[string]string)
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"clickup.base_url", "clickup.token"}
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) Validate() error                 { return m.validateErr }

// setupServices installs the given services and resets command flags.
// The previous globals are restored when the test ends.
func setupServices(t *testing.T, s Services) {
	t.Helper()

	origReconciler, origSettings, origMappings := reconciler, settingsService, mappingService
	SetServices(s)
	resetFlags()

	t.Cleanup(func() {
		reconciler, settingsService, mappingService = origReconciler, origSettings, origMappings
		resetFlags()
	})
}

// resetFlags clears flag variables, which persist between Execute calls.
func resetFlags() {
	reconcileMappings = nil
	reconcileMappingFile = ""
	reconcileProfile = ""
	reconcileNoDesc = false
	reconcileDesc = false
	reconcileNoCreate = false
	reconcileExpand = false
	reconcileValuesFile = ""
	reconcileJSON = false
	fieldsJSON = false
	mappingListID = ""
	mappingFile = ""
	mappingJSON = false
	batchConcurrency = domain.DefaultBatchConcurrency
	batchJSON = false
	watchDebounce = domain.DefaultWatchDebounce
	watchExisting = false
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
