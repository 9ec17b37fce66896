package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
	"github.com/custodia-labs/invoicesync/internal/logger"
)

// FieldSynthesizer creates custom fields for keys that match nothing.
type FieldSynthesizer struct {
	tasks driven.TaskManager
}

// NewFieldSynthesizer creates a new field synthesizer.
func NewFieldSynthesizer(tasks driven.TaskManager) *FieldSynthesizer {
	return &FieldSynthesizer{tasks: tasks}
}

// FieldName returns the display name a field for key would get.
func FieldName(key string) string {
	return domain.Humanize(key)
}

// Create creates a field named after key on the index's list and adds it to the index.
//
// Returns domain.ErrFieldCreationConflict if a field with that name already exists,
// either in the index or according to the remote. The caller should re-inspect and
// re-match before treating the conflict as fatal.
func (s *FieldSynthesizer) Create(
	ctx context.Context,
	key string,
	fieldType domain.FieldType,
	index *domain.SchemaIndex,
) (domain.FieldDescriptor, error) {
	name := FieldName(key)
	if name == "" {
		return domain.FieldDescriptor{}, fmt.Errorf("%w: empty key", domain.ErrInvalidInput)
	}
	if !fieldType.IsCreatable() {
		fieldType = domain.FieldShortText
	}

	if existing, ok := index.Lookup(name); ok {
		return existing, fmt.Errorf("%w: %q already exists as %s", domain.ErrFieldCreationConflict, name, existing.ID)
	}

	logger.Debug("creating %s field %q on list %s", fieldType, name, index.ListID)
	created, err := s.tasks.CreateField(ctx, index.ListID, name, fieldType)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) && !errors.Is(err, domain.ErrFieldCreationConflict) {
			err = fmt.Errorf("%w: %w", domain.ErrFieldCreationConflict, err)
		}
		return domain.FieldDescriptor{}, fmt.Errorf("create field %q: %w", name, err)
	}

	index.Add(*created)
	return *created, nil
}
