package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Stage is a step of one reconciliation call.
type Stage string

// Reconciliation stages, in order.
const (
	StageInspecting           Stage = "inspecting"
	StageResolving            Stage = "resolving"
	StageSetting              Stage = "setting"
	StageAppendingDescription Stage = "appending_description"
	StageExpandingSubtasks    Stage = "expanding_subtasks"
	StageDone                 Stage = "done"
)

// Action is how a key was resolved to a field.
type Action string

// Resolution actions.
const (
	// ActionMapped means an explicit FieldMapping entry was used.
	ActionMapped Action = "mapped"

	// ActionMatched means automatic matching found an existing field.
	ActionMatched Action = "matched"

	// ActionCreated means a new field was created for the key.
	ActionCreated Action = "created"

	// ActionNone means no field was resolved.
	ActionNone Action = "none"
)

// WriteStatus is the result of the value write for one key.
type WriteStatus string

// Write statuses.
const (
	// StatusWritten means the value was written as its inferred type.
	StatusWritten WriteStatus = "written"

	// StatusDegraded means the value could not be parsed for the field type
	// and was written as its original text instead.
	StatusDegraded WriteStatus = "degraded"

	// StatusNoMatch means no field matched and creation was disabled.
	StatusNoMatch WriteStatus = "no_match"

	// StatusFailed means resolution or the write failed; see Err.
	StatusFailed WriteStatus = "failed"
)

// ItemHeader is the ItemIndex of header outcomes.
const ItemHeader = -1

// Outcome is the disposition of one key, for the header or for one line item.
type Outcome struct {
	// Key is the semantic key.
	Key string `json:"key"`

	// ItemIndex is the zero-based line item index, or ItemHeader.
	ItemIndex int `json:"item_index"`

	// TaskID is the task the value was written to (the subtask for items).
	TaskID string `json:"task_id,omitempty"`

	// FieldID is the resolved field, empty when none.
	FieldID string `json:"field_id,omitempty"`

	// FieldName is the resolved field's display name.
	FieldName string `json:"field_name,omitempty"`

	// Action is how the field was resolved.
	Action Action `json:"action"`

	// Status is the write result.
	Status WriteStatus `json:"status"`

	// Value is the value as extracted, so nothing is lost when a write fails.
	Value string `json:"value"`

	// Err is the failure, if any.
	Err error `json:"-"`

	// Error is Err rendered for JSON output.
	Error string `json:"error,omitempty"`
}

// Failed returns true if the outcome is a failure.
func (o *Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// DescriptionStatus is the result of the description update.
type DescriptionStatus string

// Description statuses.
const (
	DescriptionSkipped   DescriptionStatus = "skipped"
	DescriptionAppended  DescriptionStatus = "appended"
	DescriptionReplaced  DescriptionStatus = "replaced"
	DescriptionUnchanged DescriptionStatus = "unchanged"
	DescriptionFailed    DescriptionStatus = "failed"
)

// DescriptionOutcome is the disposition of the line-item table.
type DescriptionOutcome struct {
	Status DescriptionStatus `json:"status"`
	Err    error             `json:"-"`
	Error  string            `json:"error,omitempty"`
}

// SubtaskAction is how a line item's subtask was obtained.
type SubtaskAction string

// Subtask actions.
const (
	SubtaskCreated SubtaskAction = "created"
	SubtaskReused  SubtaskAction = "reused"
	SubtaskFailed  SubtaskAction = "failed"
)

// SubtaskOutcome is the disposition of one line item's subtask.
type SubtaskOutcome struct {
	ItemIndex int           `json:"item_index"`
	Identity  string        `json:"identity"`
	SubtaskID string        `json:"subtask_id,omitempty"`
	Name      string        `json:"name"`
	Action    SubtaskAction `json:"action"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// ReconciliationReport is the deliverable of one reconciliation call.
// Every key and item attempted appears in it, including failures.
type ReconciliationReport struct {
	TaskID      string              `json:"task_id"`
	ListID      string              `json:"list_id"`
	Stage       Stage               `json:"stage"`
	Outcomes    []Outcome           `json:"outcomes"`
	Description *DescriptionOutcome `json:"description,omitempty"`
	Subtasks    []SubtaskOutcome    `json:"subtasks,omitempty"`
}

// Add records an outcome, rendering its error for JSON.
func (r *ReconciliationReport) Add(o Outcome) {
	if o.Err != nil {
		o.Error = o.Err.Error()
	}
	r.Outcomes = append(r.Outcomes, o)
}

// AddSubtask records a subtask outcome.
func (r *ReconciliationReport) AddSubtask(o SubtaskOutcome) {
	if o.Err != nil {
		o.Error = o.Err.Error()
	}
	r.Subtasks = append(r.Subtasks, o)
}

// SetDescription records the description outcome.
func (r *ReconciliationReport) SetDescription(status DescriptionStatus, err error) {
	d := &DescriptionOutcome{Status: status, Err: err}
	if err != nil {
		d.Error = err.Error()
	}
	r.Description = d
}

// Failed returns the number of failed key outcomes.
func (r *ReconciliationReport) Failed() int {
	n := 0
	for i := range r.Outcomes {
		if r.Outcomes[i].Failed() {
			n++
		}
	}
	return n
}

// Succeeded returns the number of key outcomes whose value was written.
func (r *ReconciliationReport) Succeeded() int {
	n := 0
	for i := range r.Outcomes {
		if s := r.Outcomes[i].Status; s == StatusWritten || s == StatusDegraded {
			n++
		}
	}
	return n
}

// Created returns the number of fields created during the call.
func (r *ReconciliationReport) Created() int {
	n := 0
	for i := range r.Outcomes {
		if r.Outcomes[i].Action == ActionCreated {
			n++
		}
	}
	return n
}

// HasFailures returns true if any key, the description or any subtask failed.
func (r *ReconciliationReport) HasFailures() bool {
	if r.Failed() > 0 {
		return true
	}
	if r.Description != nil && r.Description.Status == DescriptionFailed {
		return true
	}
	for i := range r.Subtasks {
		if r.Subtasks[i].Action == SubtaskFailed {
			return true
		}
	}
	return false
}

// Err returns ErrPartialFailure joined with every recorded error, or nil.
func (r *ReconciliationReport) Err() error {
	if !r.HasFailures() {
		return nil
	}
	errs := []error{ErrPartialFailure}
	for i := range r.Outcomes {
		if r.Outcomes[i].Failed() && r.Outcomes[i].Err != nil {
			errs = append(errs, r.Outcomes[i].Err)
		}
	}
	if r.Description != nil && r.Description.Err != nil {
		errs = append(errs, r.Description.Err)
	}
	for i := range r.Subtasks {
		if r.Subtasks[i].Err != nil {
			errs = append(errs, r.Subtasks[i].Err)
		}
	}
	return errors.Join(errs...)
}

// Summary renders the report as one line, e.g.
// "task 86a1: 5 written, 1 created, 1 failed; description appended; 2 subtasks".
func (r *ReconciliationReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s: %d written, %d created, %d failed", r.TaskID, r.Succeeded(), r.Created(), r.Failed())

	degraded, skipped := 0, 0
	for i := range r.Outcomes {
		switch r.Outcomes[i].Status {
		case StatusDegraded:
			degraded++
		case StatusNoMatch:
			skipped++
		}
	}
	if degraded > 0 {
		fmt.Fprintf(&b, " (%d as text)", degraded)
	}
	if skipped > 0 {
		fmt.Fprintf(&b, ", %d unmatched", skipped)
	}
	if r.Description != nil && r.Description.Status != DescriptionSkipped {
		fmt.Fprintf(&b, "; description %s", r.Description.Status)
	}
	if len(r.Subtasks) > 0 {
		failed := 0
		for i := range r.Subtasks {
			if r.Subtasks[i].Action == SubtaskFailed {
				failed++
			}
		}
		fmt.Fprintf(&b, "; %d subtasks", len(r.Subtasks))
		if failed > 0 {
			fmt.Fprintf(&b, " (%d failed)", failed)
		}
	}
	return b.String()
}
