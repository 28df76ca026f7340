package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/observability"
	"market-forecast-lab/internal/storage"
)

// PredictionRecordStore implements storage.PredictionRecordStore using
// PostgreSQL. Fundamentals and trial outcomes are stored as JSONB.
type PredictionRecordStore struct {
	pool *Pool
}

// NewPredictionRecordStore creates a new PredictionRecordStore.
func NewPredictionRecordStore(pool *Pool) *PredictionRecordStore {
	return &PredictionRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PredictionRecordStore = (*PredictionRecordStore)(nil)

const predictionRecordColumns = `
	record_id, asset_id, ts,
	lookback, predict_steps, trials,
	mean, median, std, percent_up, avg_accuracy, last_price,
	action, score, multiplier, tp, sl,
	fundamentals, trial_outcomes, base_percent, adjusted_percent,
	final_estimate, historical_mean,
	result, duration_sec, final_price, ended_at
`

// Insert adds a new record. Returns ErrDuplicateKey if record_id exists.
func (s *PredictionRecordStore) Insert(ctx context.Context, r *domain.PredictionRecord) (err error) {
	if r == nil || r.RecordID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "insert_prediction_record", time.Since(start).Seconds(), err)
	}()

	fundamentals, err := marshalFundamentals(r.Fundamentals)
	if err != nil {
		return fmt.Errorf("marshal fundamentals: %w", err)
	}
	outcomes, err := json.Marshal(r.TrialOutcomes)
	if err != nil {
		return fmt.Errorf("marshal trial outcomes: %w", err)
	}

	query := `
		INSERT INTO prediction_records (` + predictionRecordColumns + `) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21,
			$22, $23,
			$24, $25, $26, $27
		)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RecordID, r.AssetID, r.Timestamp,
		r.Lookback, r.PredictSteps, r.Trials,
		r.Mean, r.Median, r.Std, r.PercentUp, r.AvgAccuracy, r.LastPrice,
		string(r.Action), r.Score, r.Multiplier, r.TP, r.SL,
		fundamentals, outcomes, r.BasePercent, r.AdjustedPercent,
		r.FinalEstimate, r.HistoricalMean,
		r.Result, r.DurationSec, r.FinalPrice, r.EndedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert prediction record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *PredictionRecordStore) GetByID(ctx context.Context, recordID string) (rec *domain.PredictionRecord, err error) {
	query := `SELECT ` + predictionRecordColumns + ` FROM prediction_records WHERE record_id = $1`

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "get_prediction_record", time.Since(start).Seconds(), err)
	}()

	row := s.pool.QueryRow(ctx, query, recordID)
	r, err := scanPredictionRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get prediction record by id: %w", err)
	}
	return r, nil
}

// GetRecent retrieves up to limit records ordered by timestamp DESC.
func (s *PredictionRecordStore) GetRecent(ctx context.Context, limit int) (records []*domain.PredictionRecord, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "get_recent_prediction_records", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT ` + predictionRecordColumns + `
		FROM prediction_records
		ORDER BY ts DESC, record_id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent prediction records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanPredictionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction record row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction record rows: %w", err)
	}

	return records, nil
}

// AttachOutcome writes the terminal session outcome onto an existing
// record. The WHERE clause guards against double resolution, so the first
// outcome wins even under concurrent monitors.
func (s *PredictionRecordStore) AttachOutcome(ctx context.Context, recordID string, outcome domain.SessionOutcome) (err error) {
	if recordID == "" || outcome.Result == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "attach_outcome", time.Since(start).Seconds(), err)
	}()

	query := `
		UPDATE prediction_records
		SET result = $2, duration_sec = $3, final_price = $4, ended_at = $5
		WHERE record_id = $1 AND result IS NULL
	`

	tag, err := s.pool.Exec(ctx, query,
		recordID, outcome.Result, int64(outcome.Duration.Seconds()),
		outcome.FinalPrice, outcome.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("attach outcome: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// No row updated: either the record is missing or already resolved.
	var resolved bool
	err = s.pool.QueryRow(ctx,
		`SELECT result IS NOT NULL FROM prediction_records WHERE record_id = $1`,
		recordID,
	).Scan(&resolved)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check record resolution: %w", err)
	}
	if resolved {
		return storage.ErrAlreadyResolved
	}
	return storage.ErrNotFound
}

// scanPredictionRecord scans a single row into a PredictionRecord.
func scanPredictionRecord(row pgx.Row) (*domain.PredictionRecord, error) {
	var r domain.PredictionRecord
	var action string
	var fundamentals, outcomes []byte

	err := row.Scan(
		&r.RecordID, &r.AssetID, &r.Timestamp,
		&r.Lookback, &r.PredictSteps, &r.Trials,
		&r.Mean, &r.Median, &r.Std, &r.PercentUp, &r.AvgAccuracy, &r.LastPrice,
		&action, &r.Score, &r.Multiplier, &r.TP, &r.SL,
		&fundamentals, &outcomes, &r.BasePercent, &r.AdjustedPercent,
		&r.FinalEstimate, &r.HistoricalMean,
		&r.Result, &r.DurationSec, &r.FinalPrice, &r.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Action = domain.Action(action)
	if len(fundamentals) > 0 {
		var f domain.Fundamentals
		if err := json.Unmarshal(fundamentals, &f); err != nil {
			return nil, fmt.Errorf("unmarshal fundamentals: %w", err)
		}
		r.Fundamentals = &f
	}
	if len(outcomes) > 0 {
		if err := json.Unmarshal(outcomes, &r.TrialOutcomes); err != nil {
			return nil, fmt.Errorf("unmarshal trial outcomes: %w", err)
		}
	}

	return &r, nil
}

// marshalFundamentals keeps a nil snapshot as SQL NULL rather than the
// JSON literal "null".
func marshalFundamentals(f *domain.Fundamentals) ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}
