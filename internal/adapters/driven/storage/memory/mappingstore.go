package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
)

// Ensure MappingStore implements the interface.
var _ driven.MappingStore = (*MappingStore)(nil)

// MappingStore is an in-memory implementation of driven.MappingStore.
type MappingStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.MappingProfile
}

// NewMappingStore creates a new in-memory mapping store.
func NewMappingStore() *MappingStore {
	return &MappingStore{
		profiles: make(map[string]domain.MappingProfile),
	}
}

// Save stores or updates a profile by name.
func (s *MappingStore) Save(_ context.Context, profile domain.MappingProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.Mapping = cloneMapping(profile.Mapping)
	s.profiles[profile.Name] = profile
	return nil
}

// Get retrieves a profile by name.
func (s *MappingStore) Get(_ context.Context, name string) (*domain.MappingProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	profile.Mapping = cloneMapping(profile.Mapping)
	return &profile, nil
}

// Delete removes a profile.
func (s *MappingStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[name]; !ok {
		return domain.ErrNotFound
	}
	delete(s.profiles, name)
	return nil
}

// List returns all profiles ordered by name.
func (s *MappingStore) List(_ context.Context) ([]domain.MappingProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.MappingProfile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		profile.Mapping = cloneMapping(profile.Mapping)
		result = append(result, profile)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// cloneMapping keeps callers from mutating stored state through the shared map.
func cloneMapping(m domain.FieldMapping) domain.FieldMapping {
	if m == nil {
		return nil
	}
	out := make(domain.FieldMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
