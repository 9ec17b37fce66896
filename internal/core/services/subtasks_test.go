package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

func TestSubtaskIdentity(t *testing.T) {
	a := SubtaskIdentity("t1", 0, "Widget")

	assert.Equal(t, a, SubtaskIdentity("t1", 0, "  widget "), "description is normalised")
	assert.NotEqual(t, a, SubtaskIdentity("t1", 1, "Widget"))
	assert.NotEqual(t, a, SubtaskIdentity("t2", 0, "Widget"))
	assert.NotEqual(t, a, SubtaskIdentity("t1", 0, "Gadget"))
}

func TestSubtaskName(t *testing.T) {
	assert.Equal(t, "1. Widget", SubtaskName(0, domain.LineItem{Description: domain.StringValue("Widget")}))
	assert.Equal(t, "3. Line item", SubtaskName(2, domain.LineItem{}))
}

func TestIdentityFrom(t *testing.T) {
	id := SubtaskIdentity("t1", 0, "Widget")
	desc := subtaskDescription(id, domain.LineItem{Description: domain.StringValue("Widget")})

	got, ok := identityFrom(desc)
	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.Contains(t, desc, "- **Item Description:** Widget")

	_, ok = identityFrom("plain description")
	assert.False(t, ok)
	_, ok = identityFrom("invoicesync:item: not-a-uuid")
	assert.False(t, ok)
}

func TestIdentityFrom_MarkerForms(t *testing.T) {
	id := SubtaskIdentity("t1", 0, "Widget")

	assert.NotContains(t, identityMarker(id), "<!--")

	for name, desc := range map[string]string{
		"plain line":        "invoicesync:item:" + id + "\n\n- **Quantity:** 3",
		"html comment":      "<!-- invoicesync:item:" + id + " -->\n\n- **Quantity:** 3",
		"inline after text": "Moved here. invoicesync:item:" + id,
	} {
		t.Run(name, func(t *testing.T) {
			got, ok := identityFrom(desc)
			require.True(t, ok)
			assert.Equal(t, id, got)
		})
	}
}

func TestSubtaskExpander_CreatesThenReuses(t *testing.T) {
	tasks := newFakeTaskManager()
	expander := NewSubtaskExpander(tasks)
	parent := tasks.tasks["t1"]
	ctx := context.Background()

	first := expander.Expand(ctx, parent, sampleItems())
	require.Len(t, first, 2)
	for _, target := range first {
		assert.Equal(t, domain.SubtaskCreated, target.Outcome.Action)
		require.NotNil(t, target.Subtask)
		assert.Equal(t, "t1", target.Subtask.ParentID)
		assert.Equal(t, "l1", target.Subtask.ListID)
	}

	second := expander.Expand(ctx, parent, sampleItems())
	for i, target := range second {
		assert.Equal(t, domain.SubtaskReused, target.Outcome.Action)
		assert.Equal(t, first[i].Subtask.ID, target.Subtask.ID)
	}
	assert.Equal(t, 2, tasks.createSubtaskCalls)
}

func TestSubtaskExpander_ReusesLegacySubtaskByName(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.tasks["legacy"] = &domain.Task{ID: "legacy", ListID: "l1", ParentID: "t1", Name: "1. Widget"}
	expander := NewSubtaskExpander(tasks)

	targets := expander.Expand(context.Background(), tasks.tasks["t1"], sampleItems()[:1])

	require.Len(t, targets, 1)
	assert.Equal(t, domain.SubtaskReused, targets[0].Outcome.Action)
	assert.Equal(t, "legacy", targets[0].Subtask.ID)
	assert.Equal(t, 0, tasks.createSubtaskCalls)
}

func TestSubtaskExpander_ListFailureFailsEveryItem(t *testing.T) {
	tasks := newFakeTaskManager()
	tasks.listSubtasksErr = domain.ErrRemoteUnavailable
	expander := NewSubtaskExpander(tasks)

	targets := expander.Expand(context.Background(), tasks.tasks["t1"], sampleItems())

	for _, target := range targets {
		assert.Equal(t, domain.SubtaskFailed, target.Outcome.Action)
		assert.ErrorIs(t, target.Outcome.Err, domain.ErrRemoteUnavailable)
		assert.Nil(t, target.Subtask)
	}
	assert.Equal(t, 0, tasks.createSubtaskCalls)
}
