package storage

import (
	"context"

	"market-forecast-lab/internal/domain"
)

// PredictionRecordStore provides access to prediction_records storage.
//
// Records are append-only with one exception: a terminal session outcome
// may be attached exactly once after the monitored position resolves.
type PredictionRecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
	Insert(ctx context.Context, r *domain.PredictionRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, recordID string) (*domain.PredictionRecord, error)

	// GetRecent retrieves up to limit records ordered by timestamp DESC
	// (newest first).
	GetRecent(ctx context.Context, limit int) ([]*domain.PredictionRecord, error)

	// AttachOutcome writes the terminal session outcome onto an existing
	// record. Returns ErrNotFound if the record does not exist and
	// ErrAlreadyResolved if an outcome was attached before.
	AttachOutcome(ctx context.Context, recordID string, outcome domain.SessionOutcome) error
}

// SessionEventStore provides access to session_events storage.
type SessionEventStore interface {
	// Append adds a slot event. Returns ErrDuplicateKey if the derived
	// event_id exists.
	Append(ctx context.Context, eventID string, e *domain.SlotEvent) error

	// GetByRecordID retrieves all events for a record, ordered by event
	// time ASC.
	GetByRecordID(ctx context.Context, recordID string) ([]*domain.SlotEvent, error)
}

// TrialSampleStore provides access to trial_samples storage.
// Samples are high-volume append-only rows; bulk insert only.
type TrialSampleStore interface {
	// InsertBulk adds multiple samples. Fails the entire batch on any
	// duplicate (record_id, trial_index).
	InsertBulk(ctx context.Context, samples []*domain.TrialSample) error

	// GetByRecordID retrieves all samples for a record, ordered by
	// trial_index ASC.
	GetByRecordID(ctx context.Context, recordID string) ([]*domain.TrialSample, error)
}
