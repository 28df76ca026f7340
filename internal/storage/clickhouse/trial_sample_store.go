package clickhouse

import (
	"context"
	"fmt"
	"time"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/observability"
	"market-forecast-lab/internal/storage"
)

// TrialSampleStore implements storage.TrialSampleStore using ClickHouse.
type TrialSampleStore struct {
	conn *Conn
}

// NewTrialSampleStore creates a new TrialSampleStore.
func NewTrialSampleStore(conn *Conn) *TrialSampleStore {
	return &TrialSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TrialSampleStore = (*TrialSampleStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate
// (record_id, trial_index). MergeTree does not enforce uniqueness, so
// duplicates are detected with explicit checks before the batch is sent.
func (s *TrialSampleStore) InsertBulk(ctx context.Context, samples []*domain.TrialSample) (err error) {
	if len(samples) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		recordID   string
		trialIndex int
	}
	seen := make(map[key]struct{})
	for _, sample := range samples {
		if sample == nil || sample.RecordID == "" || sample.TrialIndex < 0 {
			return storage.ErrInvalidInput
		}
		k := key{sample.RecordID, sample.TrialIndex}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_trial_samples", time.Since(start).Seconds(), err)
	}()

	// Check for duplicates against existing DB rows
	for _, sample := range samples {
		exists, err := s.exists(ctx, sample.RecordID, sample.TrialIndex)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trial_samples (
			record_id, trial_index, forecast, accuracy, outcome
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sample := range samples {
		err = batch.Append(
			sample.RecordID, uint32(sample.TrialIndex),
			sample.Forecast, sample.Accuracy, sample.Outcome,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRecordID retrieves all samples for a record, ordered by trial_index ASC.
func (s *TrialSampleStore) GetByRecordID(ctx context.Context, recordID string) (samples []*domain.TrialSample, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "get_trial_samples", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT record_id, trial_index, forecast, accuracy, outcome
		FROM trial_samples
		WHERE record_id = ?
		ORDER BY trial_index ASC
	`

	rows, err := s.conn.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("query by record id: %w", err)
	}
	defer rows.Close()

	return scanTrialSamples(rows)
}

// exists checks if a sample with the given key exists.
func (s *TrialSampleStore) exists(ctx context.Context, recordID string, trialIndex int) (bool, error) {
	query := `
		SELECT count(*) FROM trial_samples
		WHERE record_id = ? AND trial_index = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, recordID, uint32(trialIndex)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanTrialSamples scans multiple rows.
func scanTrialSamples(rows chRows) ([]*domain.TrialSample, error) {
	var samples []*domain.TrialSample

	for rows.Next() {
		var sample domain.TrialSample
		var trialIndex uint32

		err := rows.Scan(
			&sample.RecordID, &trialIndex,
			&sample.Forecast, &sample.Accuracy, &sample.Outcome,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trial sample row: %w", err)
		}

		sample.TrialIndex = int(trialIndex)
		samples = append(samples, &sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trial sample rows: %w", err)
	}

	return samples, nil
}
