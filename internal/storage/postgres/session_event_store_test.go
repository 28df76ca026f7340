package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/storage"
)

func TestSessionEventStore_AppendAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionEventStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)

	resolved := &domain.SlotEvent{
		RecordID:   "rec-1",
		Type:       domain.SlotEventResolved,
		Slot:       3,
		Result:     domain.OutcomeTP,
		FinalPrice: 110.2,
		Duration:   42500 * time.Millisecond,
		At:         base,
	}
	refilled := &domain.SlotEvent{
		RecordID:  "rec-1",
		Type:      domain.SlotEventRefilled,
		Slot:      3,
		Predicted: 112.0,
		TP:        ptr(112.0),
		SL:        ptr(108.4),
		At:        base.Add(time.Second),
	}
	other := &domain.SlotEvent{
		RecordID: "rec-2",
		Type:     domain.SlotEventRefilled,
		Slot:     0,
		At:       base,
	}

	require.NoError(t, store.Append(ctx, "evt-1", resolved))
	require.NoError(t, store.Append(ctx, "evt-2", refilled))
	require.NoError(t, store.Append(ctx, "evt-3", other))

	events, err := store.GetByRecordID(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, domain.SlotEventResolved, events[0].Type)
	assert.Equal(t, 3, events[0].Slot)
	assert.Equal(t, domain.OutcomeTP, events[0].Result)
	assert.Equal(t, 110.2, events[0].FinalPrice)
	assert.Equal(t, 42500*time.Millisecond, events[0].Duration)
	assert.WithinDuration(t, base, events[0].At, time.Millisecond)

	assert.Equal(t, domain.SlotEventRefilled, events[1].Type)
	assert.Equal(t, 112.0, events[1].Predicted)
	require.NotNil(t, events[1].TP)
	assert.Equal(t, 112.0, *events[1].TP)
	require.NotNil(t, events[1].SL)
	assert.Equal(t, 108.4, *events[1].SL)
}

func TestSessionEventStore_AppendDuplicateEventID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionEventStore(pool)
	ctx := context.Background()

	e := &domain.SlotEvent{
		RecordID: "rec-1",
		Type:     domain.SlotEventRefilled,
		Slot:     0,
		At:       time.Now().UTC(),
	}
	require.NoError(t, store.Append(ctx, "evt-dup", e))

	err := store.Append(ctx, "evt-dup", e)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSessionEventStore_AppendInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionEventStore(pool)
	ctx := context.Background()

	valid := &domain.SlotEvent{Type: domain.SlotEventRefilled, At: time.Now().UTC()}

	assert.ErrorIs(t, store.Append(ctx, "", valid), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Append(ctx, "evt-1", nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Append(ctx, "evt-1", &domain.SlotEvent{At: time.Now().UTC()}), storage.ErrInvalidInput)
}

func TestSessionEventStore_GetByRecordIDEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionEventStore(pool)

	events, err := store.GetByRecordID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}
