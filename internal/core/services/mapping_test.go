package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

func TestMappingService_SetAndGet(t *testing.T) {
	store := newMockMappingStore()
	service := NewMappingService(store)
	ctx := context.Background()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return created }

	p, err := service.Set(ctx, "acme", "l1", domain.FieldMapping{"Total": "Grand Total"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.FieldMapping{"total": "Grand Total"}, p.Mapping)

	updated := created.Add(time.Hour)
	service.now = func() time.Time { return updated }
	p2, err := service.Set(ctx, "acme", "", domain.FieldMapping{"due_date": "Pay By"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, p2.ID, "updating keeps the profile ID")
	assert.Equal(t, created, p2.CreatedAt)
	assert.Equal(t, updated, p2.UpdatedAt)

	got, err := service.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.FieldMapping{"due_date": "Pay By"}, got.Mapping)
}

func TestMappingService_Set_Validation(t *testing.T) {
	service := NewMappingService(newMockMappingStore())
	ctx := context.Background()

	_, err := service.Set(ctx, " ", "", domain.FieldMapping{"a": "b"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = service.Set(ctx, "empty", "", domain.FieldMapping{"a": " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMappingService_Set_StoreError(t *testing.T) {
	store := newMockMappingStore()
	store.err = errors.New("disk full")
	service := NewMappingService(store)

	_, err := service.Set(context.Background(), "acme", "", domain.FieldMapping{"a": "b"})
	assert.ErrorContains(t, err, "disk full")
}

func TestMappingService_Resolve(t *testing.T) {
	store := newMockMappingStore()
	service := NewMappingService(store)
	ctx := context.Background()

	_, err := service.Set(ctx, "acme", "", domain.FieldMapping{"total": "Grand Total", "tax": "VAT"})
	require.NoError(t, err)

	m, err := service.Resolve(ctx, "acme", domain.FieldMapping{"Total": "Amount"})
	require.NoError(t, err)
	assert.Equal(t, domain.FieldMapping{"total": "Amount", "tax": "VAT"}, m)

	m, err = service.Resolve(ctx, "", domain.FieldMapping{"Total": "Amount"})
	require.NoError(t, err)
	assert.Equal(t, domain.FieldMapping{"total": "Amount"}, m)

	_, err = service.Resolve(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMappingService_ListAndDelete(t *testing.T) {
	service := NewMappingService(newMockMappingStore())
	ctx := context.Background()

	_, err := service.Set(ctx, "a", "", domain.FieldMapping{"x": "y"})
	require.NoError(t, err)

	list, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, service.Delete(ctx, "a"))
	assert.ErrorIs(t, service.Delete(ctx, "a"), domain.ErrNotFound)
}

func TestMappingService_NilStore(t *testing.T) {
	service := NewMappingService(nil)
	ctx := context.Background()

	_, err := service.Set(ctx, "a", "", domain.FieldMapping{"x": "y"})
	assert.ErrorIs(t, err, domain.ErrNotImplemented)

	list, err := service.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, list)

	_, err = service.Resolve(ctx, "a", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
