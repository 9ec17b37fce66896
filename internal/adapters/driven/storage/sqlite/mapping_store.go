package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
)

// mappingStore implements driven.MappingStore.
type mappingStore struct {
	store *Store
}

var _ driven.MappingStore = (*mappingStore)(nil)

// Save stores or updates a profile. An existing profile keeps its ID and
// creation time; its entries are replaced.
func (s *mappingStore) Save(ctx context.Context, profile domain.MappingProfile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = now
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving mapping profile: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mapping_profiles (id, name, list_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			list_id = excluded.list_id,
			updated_at = excluded.updated_at
	`, profile.ID, profile.Name, profile.ListID, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving mapping profile: %w", err)
	}

	var id string
	if err := tx.QueryRowContext(ctx, "SELECT id FROM mapping_profiles WHERE name = ?", profile.Name).Scan(&id); err != nil {
		return fmt.Errorf("saving mapping profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM mapping_entries WHERE profile_id = ?", id); err != nil {
		return fmt.Errorf("clearing mapping entries: %w", err)
	}
	for key, ref := range profile.Mapping {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO mapping_entries (profile_id, key, field_ref) VALUES (?, ?, ?)",
			id, key, ref,
		); err != nil {
			return fmt.Errorf("saving mapping entry %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving mapping profile: %w", err)
	}
	return nil
}

// Get retrieves a profile by name.
func (s *mappingStore) Get(ctx context.Context, name string) (*domain.MappingProfile, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, list_id, created_at, updated_at
		FROM mapping_profiles WHERE name = ?
	`, name)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning mapping profile: %w", err)
	}

	if err := s.loadEntries(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Delete removes a profile and its entries.
func (s *mappingStore) Delete(ctx context.Context, name string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM mapping_profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting mapping profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting mapping profile: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns all profiles ordered by name.
func (s *mappingStore) List(ctx context.Context) ([]domain.MappingProfile, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, list_id, created_at, updated_at
		FROM mapping_profiles ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying mapping profiles: %w", err)
	}
	defer rows.Close()

	profiles := []domain.MappingProfile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning mapping profile: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mapping profiles: %w", err)
	}
	rows.Close()

	for i := range profiles {
		if err := s.loadEntries(ctx, &profiles[i]); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

func (s *mappingStore) loadEntries(ctx context.Context, profile *domain.MappingProfile) error {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT key, field_ref FROM mapping_entries WHERE profile_id = ?", profile.ID)
	if err != nil {
		return fmt.Errorf("querying mapping entries: %w", err)
	}
	defer rows.Close()

	profile.Mapping = domain.FieldMapping{}
	for rows.Next() {
		var key, ref string
		if err := rows.Scan(&key, &ref); err != nil {
			return fmt.Errorf("scanning mapping entry: %w", err)
		}
		profile.Mapping[key] = ref
	}
	return rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*domain.MappingProfile, error) {
	var profile domain.MappingProfile
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&profile.ID, &profile.Name, &profile.ListID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		profile.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		profile.UpdatedAt = updatedAt.Time
	}
	return &profile, nil
}
