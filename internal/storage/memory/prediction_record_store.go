package memory

import (
	"context"
	"sort"
	"sync"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/storage"
)

// PredictionRecordStore is an in-memory implementation of
// storage.PredictionRecordStore.
type PredictionRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PredictionRecord // keyed by record_id
}

// NewPredictionRecordStore creates a new in-memory prediction record store.
func NewPredictionRecordStore() *PredictionRecordStore {
	return &PredictionRecordStore{
		data: make(map[string]*domain.PredictionRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
func (s *PredictionRecordStore) Insert(_ context.Context, r *domain.PredictionRecord) error {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RecordID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RecordID] = copyRecord(r)
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *PredictionRecordStore) GetByID(_ context.Context, recordID string) (*domain.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[recordID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyRecord(r), nil
}

// GetRecent retrieves up to limit records ordered by timestamp DESC.
func (s *PredictionRecordStore) GetRecent(_ context.Context, limit int) ([]*domain.PredictionRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PredictionRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyRecord(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].RecordID > result[j].RecordID
		}
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// AttachOutcome writes the terminal session outcome onto an existing record.
func (s *PredictionRecordStore) AttachOutcome(_ context.Context, recordID string, outcome domain.SessionOutcome) error {
	if recordID == "" || outcome.Result == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[recordID]
	if !exists {
		return storage.ErrNotFound
	}
	if r.Resolved() {
		return storage.ErrAlreadyResolved
	}

	result := outcome.Result
	durationSec := int64(outcome.Duration.Seconds())
	finalPrice := outcome.FinalPrice
	endedAt := outcome.EndedAt

	r.Result = &result
	r.DurationSec = &durationSec
	r.FinalPrice = &finalPrice
	r.EndedAt = &endedAt
	return nil
}

// copyRecord deep-copies a record so callers never alias store state.
func copyRecord(r *domain.PredictionRecord) *domain.PredictionRecord {
	c := *r
	if r.TP != nil {
		v := *r.TP
		c.TP = &v
	}
	if r.SL != nil {
		v := *r.SL
		c.SL = &v
	}
	if r.Fundamentals != nil {
		f := *r.Fundamentals
		c.Fundamentals = &f
	}
	if r.TrialOutcomes != nil {
		c.TrialOutcomes = make([]domain.TrialOutcome, len(r.TrialOutcomes))
		copy(c.TrialOutcomes, r.TrialOutcomes)
	}
	if r.HistoricalMean != nil {
		v := *r.HistoricalMean
		c.HistoricalMean = &v
	}
	if r.Result != nil {
		v := *r.Result
		c.Result = &v
	}
	if r.DurationSec != nil {
		v := *r.DurationSec
		c.DurationSec = &v
	}
	if r.FinalPrice != nil {
		v := *r.FinalPrice
		c.FinalPrice = &v
	}
	if r.EndedAt != nil {
		v := *r.EndedAt
		c.EndedAt = &v
	}
	return &c
}

var _ storage.PredictionRecordStore = (*PredictionRecordStore)(nil)
