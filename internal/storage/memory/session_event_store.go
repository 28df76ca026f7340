package memory

import (
	"context"
	"sort"
	"sync"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/storage"
)

// SessionEventStore is an in-memory implementation of
// storage.SessionEventStore.
type SessionEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SlotEvent // keyed by event_id
}

// NewSessionEventStore creates a new in-memory session event store.
func NewSessionEventStore() *SessionEventStore {
	return &SessionEventStore{
		data: make(map[string]*domain.SlotEvent),
	}
}

// Append adds a slot event. Returns ErrDuplicateKey if event_id exists.
func (s *SessionEventStore) Append(_ context.Context, eventID string, e *domain.SlotEvent) error {
	if eventID == "" || e == nil || e.Type == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[eventID]; exists {
		return storage.ErrDuplicateKey
	}

	c := copyEvent(e)
	s.data[eventID] = c
	return nil
}

// GetByRecordID retrieves all events for a record, ordered by event time ASC.
func (s *SessionEventStore) GetByRecordID(_ context.Context, recordID string) ([]*domain.SlotEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SlotEvent
	for _, e := range s.data {
		if e.RecordID == recordID {
			result = append(result, copyEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].At.Equal(result[j].At) {
			return result[i].Slot < result[j].Slot
		}
		return result[i].At.Before(result[j].At)
	})

	return result, nil
}

func copyEvent(e *domain.SlotEvent) *domain.SlotEvent {
	c := *e
	if e.TP != nil {
		v := *e.TP
		c.TP = &v
	}
	if e.SL != nil {
		v := *e.SL
		c.SL = &v
	}
	return &c
}

var _ storage.SessionEventStore = (*SessionEventStore)(nil)
