package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
)

// subtaskNamespace scopes line-item identities. Changing it orphans every existing subtask.
var subtaskNamespace = uuid.MustParse("6f1b3c2e-8a4d-5e7f-9b0c-1d2e3f4a5b6c")

// identityMarkerPrefix opens the identity line of a subtask description. Older
// subtasks carry it inside an HTML comment, which identityFrom also accepts.
const identityMarkerPrefix = "invoicesync:item:"

// SubtaskIdentity derives the stable identity of line item index under taskID.
func SubtaskIdentity(taskID string, index int, description string) string {
	seed := fmt.Sprintf("%s|%d|%s", taskID, index, domain.NormalizeName(description))
	return uuid.NewSHA1(subtaskNamespace, []byte(seed)).String()
}

// SubtaskName is the display name of the subtask for line item index.
func SubtaskName(index int, item domain.LineItem) string {
	desc := strings.TrimSpace(item.Description.String())
	if desc == "" {
		return fmt.Sprintf("%d. Line item", index+1)
	}
	return fmt.Sprintf("%d. %s", index+1, desc)
}

func identityMarker(identity string) string {
	return identityMarkerPrefix + identity
}

// identityFrom extracts the identity marker from a subtask description.
func identityFrom(description string) (string, bool) {
	start := strings.Index(description, identityMarkerPrefix)
	if start < 0 {
		return "", false
	}
	fields := strings.Fields(description[start+len(identityMarkerPrefix):])
	if len(fields) == 0 {
		return "", false
	}
	id, err := uuid.Parse(fields[0])
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// subtaskDescription is the body of a new subtask: the identity marker and a summary.
func subtaskDescription(identity string, item domain.LineItem) string {
	var b strings.Builder
	b.WriteString(identityMarker(identity))
	b.WriteString("\n\n")
	for _, e := range item.Entries() {
		b.WriteString("- **" + domain.Humanize(e.Key) + ":** " + e.Value.String() + "\n")
	}
	return b.String()
}

// SubtaskTarget is a line item paired with the subtask that represents it.
type SubtaskTarget struct {
	ItemIndex int
	Item      domain.LineItem
	Subtask   *domain.Task
	Outcome   domain.SubtaskOutcome
}

// SubtaskExpander finds or creates one subtask per line item.
type SubtaskExpander struct {
	tasks driven.TaskManager
}

// NewSubtaskExpander creates a new subtask expander.
func NewSubtaskExpander(tasks driven.TaskManager) *SubtaskExpander {
	return &SubtaskExpander{tasks: tasks}
}

// Expand lists the parent's subtasks once and returns a target per item. An existing
// subtask is reused when its description carries the item's identity marker or,
// for subtasks created without a marker, when its name equals the derived name.
// Items whose subtask could not be obtained have a SubtaskFailed outcome and a nil Subtask.
func (e *SubtaskExpander) Expand(ctx context.Context, parent *domain.Task, items []domain.LineItem) []SubtaskTarget {
	targets := make([]SubtaskTarget, len(items))
	for i, item := range items {
		identity := SubtaskIdentity(parent.ID, i, item.Description.String())
		targets[i] = SubtaskTarget{
			ItemIndex: i,
			Item:      item,
			Outcome: domain.SubtaskOutcome{
				ItemIndex: i,
				Identity:  identity,
				Name:      SubtaskName(i, item),
			},
		}
	}

	existing, err := e.tasks.ListSubtasks(ctx, parent)
	if err != nil {
		// Creating without knowing what exists could duplicate subtasks.
		for i := range targets {
			targets[i].Outcome.Action = domain.SubtaskFailed
			targets[i].Outcome.Err = fmt.Errorf("list subtasks: %w", err)
		}
		return targets
	}

	byIdentity := make(map[string]*domain.Task, len(existing))
	byName := make(map[string]*domain.Task, len(existing))
	for i := range existing {
		sub := &existing[i]
		if id, ok := identityFrom(sub.Description); ok {
			if _, dup := byIdentity[id]; !dup {
				byIdentity[id] = sub
			}
			continue
		}
		if _, dup := byName[sub.Name]; !dup {
			byName[sub.Name] = sub
		}
	}

	for i := range targets {
		t := &targets[i]
		if sub, ok := byIdentity[t.Outcome.Identity]; ok {
			t.reuse(sub)
			continue
		}
		if sub, ok := byName[t.Outcome.Name]; ok {
			delete(byName, t.Outcome.Name)
			t.reuse(sub)
			continue
		}

		created, err := e.tasks.CreateSubtask(ctx, domain.NewSubtask{
			ParentID:    parent.ID,
			ListID:      parent.ListID,
			Name:        t.Outcome.Name,
			Description: subtaskDescription(t.Outcome.Identity, t.Item),
		})
		if err != nil {
			t.Outcome.Action = domain.SubtaskFailed
			t.Outcome.Err = fmt.Errorf("create subtask %q: %w", t.Outcome.Name, err)
			continue
		}
		t.Subtask = created
		t.Outcome.SubtaskID = created.ID
		t.Outcome.Action = domain.SubtaskCreated
	}
	return targets
}

func (t *SubtaskTarget) reuse(sub *domain.Task) {
	t.Subtask = sub
	t.Outcome.SubtaskID = sub.ID
	t.Outcome.Action = domain.SubtaskReused
}
