package postgres

import (
	"context"
	"fmt"
	"time"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/observability"
	"market-forecast-lab/internal/storage"
)

// SessionEventStore implements storage.SessionEventStore using PostgreSQL.
type SessionEventStore struct {
	pool *Pool
}

// NewSessionEventStore creates a new SessionEventStore.
func NewSessionEventStore(pool *Pool) *SessionEventStore {
	return &SessionEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionEventStore = (*SessionEventStore)(nil)

// Append adds a slot event. Returns ErrDuplicateKey if event_id exists.
func (s *SessionEventStore) Append(ctx context.Context, eventID string, e *domain.SlotEvent) (err error) {
	if eventID == "" || e == nil || e.Type == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "append_session_event", time.Since(start).Seconds(), err)
	}()

	query := `
		INSERT INTO session_events (
			event_id, record_id, event_type, slot,
			result, final_price, duration_ms,
			predicted, tp, sl, occurred_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11
		)
	`

	_, err = s.pool.Exec(ctx, query,
		eventID, e.RecordID, e.Type, e.Slot,
		e.Result, e.FinalPrice, e.Duration.Milliseconds(),
		e.Predicted, e.TP, e.SL, e.At,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append session event: %w", err)
	}
	return nil
}

// GetByRecordID retrieves all events for a record, ordered by event time ASC.
func (s *SessionEventStore) GetByRecordID(ctx context.Context, recordID string) (events []*domain.SlotEvent, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "get_session_events", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT
			record_id, event_type, slot,
			result, final_price, duration_ms,
			predicted, tp, sl, occurred_at
		FROM session_events
		WHERE record_id = $1
		ORDER BY occurred_at ASC, slot ASC
	`

	rows, err := s.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("get session events by record id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.SlotEvent
		var durationMs int64

		err := rows.Scan(
			&e.RecordID, &e.Type, &e.Slot,
			&e.Result, &e.FinalPrice, &durationMs,
			&e.Predicted, &e.TP, &e.SL, &e.At,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session event row: %w", err)
		}

		e.Duration = time.Duration(durationMs) * time.Millisecond
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session event rows: %w", err)
	}

	return events, nil
}
