package driving

import (
	"context"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// MappingService manages saved field mapping profiles.
type MappingService interface {
	// Set creates a profile or replaces the mapping of an existing one.
	Set(ctx context.Context, name, listID string, mapping domain.FieldMapping) (*domain.MappingProfile, error)

	// Get retrieves a profile by name.
	Get(ctx context.Context, name string) (*domain.MappingProfile, error)

	// List returns all profiles.
	List(ctx context.Context) ([]domain.MappingProfile, error)

	// Delete removes a profile.
	Delete(ctx context.Context, name string) error

	// Resolve returns the named profile's mapping merged with overrides.
	// An empty name returns the overrides alone.
	Resolve(ctx context.Context, name string, overrides domain.FieldMapping) (domain.FieldMapping, error)
}
