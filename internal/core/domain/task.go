package domain

// Task is the part of a remote task the engine reads.
type Task struct {
	// ID identifies the task.
	ID string

	// ListID is the list that owns the task and its custom field schema.
	ListID string

	// Name is the task title.
	Name string

	// Description is the task's free-text (Markdown) description.
	Description string

	// ParentID is set for subtasks.
	ParentID string
}

// IsSubtask returns true if the task has a parent.
func (t *Task) IsSubtask() bool {
	return t.ParentID != ""
}

// NewSubtask describes a subtask to create under a parent task.
type NewSubtask struct {
	ParentID    string
	ListID      string
	Name        string
	Description string
}

// FieldWrite is a serialised value ready for the task-management API.
type FieldWrite struct {
	// Value is the JSON-encodable payload (string, float64, int64 epoch millis or option ID).
	Value any

	// DateHasTime is set for date values that carry a time of day.
	DateHasTime bool
}
