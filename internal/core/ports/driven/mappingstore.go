package driven

import (
	"context"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// MappingStore persists named field mapping profiles.
type MappingStore interface {
	// Save stores or updates a profile. Profiles are unique by name.
	Save(ctx context.Context, profile domain.MappingProfile) error

	// Get retrieves a profile by name.
	// Returns domain.ErrNotFound if no profile has that name.
	Get(ctx context.Context, name string) (*domain.MappingProfile, error)

	// Delete removes a profile by name.
	// Returns domain.ErrNotFound if no profile has that name.
	Delete(ctx context.Context, name string) error

	// List returns all profiles ordered by name.
	List(ctx context.Context) ([]domain.MappingProfile, error)
}
