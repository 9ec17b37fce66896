package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
)

// ValueSetter serialises values for their field type and writes them.
type ValueSetter struct {
	tasks driven.TaskManager
}

// NewValueSetter creates a new value setter.
func NewValueSetter(tasks driven.TaskManager) *ValueSetter {
	return &ValueSetter{tasks: tasks}
}

// Serialize converts v into the payload for field f.
//
// Dates become epoch milliseconds and numbers become float64. A value that does
// not parse for a date or number field is kept as its original text and the
// returned status is StatusDegraded, so nothing is silently dropped.
// Enumerated fields take the ID of the option whose name matches the value;
// an unknown option is reported as domain.ErrValueRejected.
func Serialize(f domain.FieldDescriptor, v domain.Value) (domain.FieldWrite, domain.WriteStatus, error) {
	if f.IsEnumerated() {
		opt, ok := f.Option(v.String())
		if !ok {
			return domain.FieldWrite{}, domain.StatusFailed,
				fmt.Errorf("%w: %q is not an option of %q", domain.ErrValueRejected, v.String(), f.Name)
		}
		return domain.FieldWrite{Value: opt.ID}, domain.StatusWritten, nil
	}

	switch f.Type {
	case domain.FieldDate:
		t, hasTime, ok := ParseDate(v.String(), true)
		if !ok {
			return domain.FieldWrite{Value: v.String()}, domain.StatusDegraded, nil
		}
		return domain.FieldWrite{Value: t.UnixMilli(), DateHasTime: hasTime}, domain.StatusWritten, nil

	case domain.FieldNumber:
		if v.Kind == domain.ValueNumber {
			return domain.FieldWrite{Value: v.Num}, domain.StatusWritten, nil
		}
		n, ok := ParseNumber(v.String())
		if !ok {
			return domain.FieldWrite{Value: v.String()}, domain.StatusDegraded, nil
		}
		return domain.FieldWrite{Value: n}, domain.StatusWritten, nil

	case domain.FieldShortText:
		return domain.FieldWrite{Value: v.String()}, domain.StatusWritten, nil

	default:
		if v.Kind == domain.ValueBool {
			return domain.FieldWrite{Value: v.Bool}, domain.StatusWritten, nil
		}
		return domain.FieldWrite{Value: v.String()}, domain.StatusWritten, nil
	}
}

// Set writes v to field f on the task. The remote write happens once, without retry.
func (s *ValueSetter) Set(ctx context.Context, taskID string, f domain.FieldDescriptor, v domain.Value) (domain.WriteStatus, error) {
	payload, status, err := Serialize(f, v)
	if err != nil {
		return status, err
	}
	if err := s.tasks.SetFieldValue(ctx, taskID, f.ID, payload); err != nil {
		return domain.StatusFailed, fmt.Errorf("set field %q: %w", f.Name, err)
	}
	return status, nil
}
