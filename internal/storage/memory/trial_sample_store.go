package memory

import (
	"context"
	"sort"
	"sync"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/storage"
)

// TrialSampleStore is an in-memory implementation of
// storage.TrialSampleStore.
type TrialSampleStore struct {
	mu   sync.RWMutex
	data map[sampleKey]*domain.TrialSample
}

type sampleKey struct {
	recordID   string
	trialIndex int
}

// NewTrialSampleStore creates a new in-memory trial sample store.
func NewTrialSampleStore() *TrialSampleStore {
	return &TrialSampleStore{
		data: make(map[sampleKey]*domain.TrialSample),
	}
}

// InsertBulk adds multiple samples atomically. Fails the entire batch on
// any duplicate (record_id, trial_index).
func (s *TrialSampleStore) InsertBulk(_ context.Context, samples []*domain.TrialSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[sampleKey]struct{}, len(samples))

	for _, sample := range samples {
		if sample == nil || sample.RecordID == "" || sample.TrialIndex < 0 {
			return storage.ErrInvalidInput
		}

		k := sampleKey{sample.RecordID, sample.TrialIndex}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, sample := range samples {
		c := *sample
		s.data[sampleKey{sample.RecordID, sample.TrialIndex}] = &c
	}

	return nil
}

// GetByRecordID retrieves all samples for a record, ordered by trial_index ASC.
func (s *TrialSampleStore) GetByRecordID(_ context.Context, recordID string) ([]*domain.TrialSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrialSample
	for _, sample := range s.data {
		if sample.RecordID == recordID {
			c := *sample
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TrialIndex < result[j].TrialIndex
	})

	return result, nil
}

var _ storage.TrialSampleStore = (*TrialSampleStore)(nil)
