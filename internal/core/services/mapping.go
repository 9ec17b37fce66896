package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
)

// Ensure MappingService implements the interface.
var _ driving.MappingService = (*MappingService)(nil)

// MappingService manages saved field mapping profiles.
type MappingService struct {
	store driven.MappingStore
	now   func() time.Time
}

// NewMappingService creates a new mapping service. store may be nil, in which case
// only ad-hoc mappings are available.
func NewMappingService(store driven.MappingStore) *MappingService {
	return &MappingService{store: store, now: time.Now}
}

// Set creates a profile or replaces the mapping of an existing one.
func (s *MappingService) Set(ctx context.Context, name, listID string, mapping domain.FieldMapping) (*domain.MappingProfile, error) {
	if s.store == nil {
		return nil, fmt.Errorf("mapping profiles: %w", domain.ErrNotImplemented)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: profile name is required", domain.ErrInvalidInput)
	}
	normalized := mapping.Normalized()
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: mapping is empty", domain.ErrInvalidInput)
	}

	now := s.now().UTC()
	profile := domain.MappingProfile{
		ID:        uuid.New().String(),
		Name:      name,
		ListID:    strings.TrimSpace(listID),
		Mapping:   normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := s.store.Get(ctx, name)
	switch {
	case err == nil:
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if err := s.store.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return &profile, nil
}

// Get retrieves a profile by name.
func (s *MappingService) Get(ctx context.Context, name string) (*domain.MappingProfile, error) {
	if s.store == nil {
		return nil, fmt.Errorf("mapping profile %q: %w", name, domain.ErrNotFound)
	}
	return s.store.Get(ctx, strings.TrimSpace(name))
}

// List returns all profiles.
func (s *MappingService) List(ctx context.Context) ([]domain.MappingProfile, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.List(ctx)
}

// Delete removes a profile.
func (s *MappingService) Delete(ctx context.Context, name string) error {
	if s.store == nil {
		return fmt.Errorf("mapping profile %q: %w", name, domain.ErrNotFound)
	}
	return s.store.Delete(ctx, strings.TrimSpace(name))
}

// Resolve returns the named profile's mapping with overrides applied on top.
func (s *MappingService) Resolve(ctx context.Context, name string, overrides domain.FieldMapping) (domain.FieldMapping, error) {
	if strings.TrimSpace(name) == "" {
		return overrides.Normalized(), nil
	}
	profile, err := s.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load mapping profile %q: %w", name, err)
	}
	return profile.Mapping.Merge(overrides), nil
}
