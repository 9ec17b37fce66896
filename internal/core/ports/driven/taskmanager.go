package driven

import (
	"context"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// TaskManager is the task-management system the engine reconciles onto.
//
// Every method is a single remote call bounded by the adapter's timeout.
// Implementations map transport failures to domain.ErrRemoteUnavailable,
// refused values to domain.ErrValueRejected, duplicate field names to
// domain.ErrFieldCreationConflict and missing resources to domain.ErrNotFound.
type TaskManager interface {
	// GetTask retrieves a task including its list ID and description.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// ListFields returns the custom fields defined on a list, in the order
	// the remote system reports them.
	ListFields(ctx context.Context, listID string) ([]domain.FieldDescriptor, error)

	// CreateField creates a custom field on a list and returns its descriptor.
	CreateField(ctx context.Context, listID, name string, fieldType domain.FieldType) (*domain.FieldDescriptor, error)

	// SetFieldValue writes one custom field value on a task.
	SetFieldValue(ctx context.Context, taskID, fieldID string, value domain.FieldWrite) error

	// UpdateDescription replaces the task's Markdown description.
	UpdateDescription(ctx context.Context, taskID, markdown string) error

	// ListSubtasks returns the direct subtasks of a task.
	ListSubtasks(ctx context.Context, parent *domain.Task) ([]domain.Task, error)

	// CreateSubtask creates a subtask and returns it.
	CreateSubtask(ctx context.Context, sub domain.NewSubtask) (*domain.Task, error)
}
