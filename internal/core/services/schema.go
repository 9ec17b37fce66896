package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
)

// SchemaInspector reads a list's custom fields into a fresh SchemaIndex.
// Indexes are never cached: the remote schema can change between calls.
type SchemaInspector struct {
	tasks driven.TaskManager
}

// NewSchemaInspector creates a new schema inspector.
func NewSchemaInspector(tasks driven.TaskManager) *SchemaInspector {
	return &SchemaInspector{tasks: tasks}
}

// Inspect reads the fields of listID. Failures are returned without retry.
func (i *SchemaInspector) Inspect(ctx context.Context, listID string) (*domain.SchemaIndex, error) {
	fields, err := i.tasks.ListFields(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("inspect list %s: %w", listID, err)
	}
	return domain.NewSchemaIndex(listID, fields), nil
}
