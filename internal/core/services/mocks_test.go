package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
)

// Ensure fakeTaskManager implements the interface.
var _ driven.TaskManager = (*fakeTaskManager)(nil)

// fakeTaskManager is an in-memory task-management system.
type fakeTaskManager struct {
	mu sync.Mutex

	tasks  map[string]*domain.Task
	fields map[string][]domain.FieldDescriptor
	values map[string]map[string]domain.FieldWrite
	nextID int

	// Call counters.
	listFieldsCalls    int
	createFieldCalls   int
	setCalls           int
	descriptionWrites  int
	createSubtaskCalls int

	// Error injection.
	getTaskErr      error
	listFieldsErr   error
	listSubtasksErr error
	updateDescErr   error
	setErrs         map[string]error
	createFieldErr  error

	// beforeCreateField runs before a field is created, e.g. to simulate another writer.
	beforeCreateField func(listID, name string)
}

func newFakeTaskManager() *fakeTaskManager {
	f := &fakeTaskManager{
		tasks:   make(map[string]*domain.Task),
		fields:  make(map[string][]domain.FieldDescriptor),
		values:  make(map[string]map[string]domain.FieldWrite),
		setErrs: make(map[string]error),
	}
	f.tasks["t1"] = &domain.Task{ID: "t1", ListID: "l1", Name: "Invoice task"}
	return f
}

func (f *fakeTaskManager) addField(listID string, field domain.FieldDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields[listID] = append(f.fields[listID], field)
}

func (f *fakeTaskManager) value(taskID, fieldID string) (domain.FieldWrite, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[taskID][fieldID]
	return v, ok
}

func (f *fakeTaskManager) subtasks(parentID string) []domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Task
	for _, t := range f.tasks {
		if t.ParentID == parentID {
			out = append(out, *t)
		}
	}
	return out
}

// mutations counts every remote write.
func (f *fakeTaskManager) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createFieldCalls + f.setCalls + f.descriptionWrites + f.createSubtaskCalls
}

func (f *fakeTaskManager) GetTask(_ context.Context, taskID string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getTaskErr != nil {
		return nil, f.getTaskErr
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskManager) ListFields(_ context.Context, listID string) ([]domain.FieldDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFieldsCalls++
	if f.listFieldsErr != nil {
		return nil, f.listFieldsErr
	}
	out := make([]domain.FieldDescriptor, len(f.fields[listID]))
	copy(out, f.fields[listID])
	return out, nil
}

func (f *fakeTaskManager) CreateField(_ context.Context, listID, name string, fieldType domain.FieldType) (*domain.FieldDescriptor, error) {
	if f.beforeCreateField != nil {
		f.beforeCreateField(listID, name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createFieldCalls++
	if f.createFieldErr != nil {
		return nil, f.createFieldErr
	}
	for _, existing := range f.fields[listID] {
		if domain.NormalizeName(existing.Name) == domain.NormalizeName(name) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFieldCreationConflict, name)
		}
	}
	f.nextID++
	field := domain.FieldDescriptor{ID: fmt.Sprintf("cf-%d", f.nextID), Name: name, Type: fieldType}
	f.fields[listID] = append(f.fields[listID], field)
	return &field, nil
}

func (f *fakeTaskManager) SetFieldValue(_ context.Context, taskID, fieldID string, value domain.FieldWrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if err := f.setErrs[fieldID]; err != nil {
		return err
	}
	if f.values[taskID] == nil {
		f.values[taskID] = make(map[string]domain.FieldWrite)
	}
	f.values[taskID][fieldID] = value
	return nil
}

func (f *fakeTaskManager) UpdateDescription(_ context.Context, taskID, markdown string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descriptionWrites++
	if f.updateDescErr != nil {
		return f.updateDescErr
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	t.Description = markdown
	return nil
}

func (f *fakeTaskManager) ListSubtasks(_ context.Context, parent *domain.Task) ([]domain.Task, error) {
	if f.listSubtasksErr != nil {
		return nil, f.listSubtasksErr
	}
	return f.subtasks(parent.ID), nil
}

func (f *fakeTaskManager) CreateSubtask(_ context.Context, sub domain.NewSubtask) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createSubtaskCalls++
	f.nextID++
	t := &domain.Task{
		ID:          fmt.Sprintf("st-%d", f.nextID),
		ListID:      sub.ListID,
		Name:        sub.Name,
		Description: sub.Description,
		ParentID:    sub.ParentID,
	}
	f.tasks[t.ID] = t
	cp := *t
	return &cp, nil
}

// mockMappingStore is an in-memory driven.MappingStore.
type mockMappingStore struct {
	profiles map[string]domain.MappingProfile
	err      error
}

func newMockMappingStore() *mockMappingStore {
	return &mockMappingStore{profiles: make(map[string]domain.MappingProfile)}
}

func (m *mockMappingStore) Save(_ context.Context, p domain.MappingProfile) error {
	if m.err != nil {
		return m.err
	}
	m.profiles[p.Name] = p
	return nil
}

func (m *mockMappingStore) Get(_ context.Context, name string) (*domain.MappingProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *mockMappingStore) Delete(_ context.Context, name string) error {
	if _, ok := m.profiles[name]; !ok {
		return domain.ErrNotFound
	}
	delete(m.profiles, name)
	return nil
}

func (m *mockMappingStore) List(_ context.Context) ([]domain.MappingProfile, error) {
	out := make([]domain.MappingProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}
