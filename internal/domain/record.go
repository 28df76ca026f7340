package domain

import "time"

// TrialOutcome labels one per-trial forecast relative to the blended action.
type TrialOutcome struct {
	Forecast float64 `json:"forecast"`
	Outcome  string  `json:"outcome"` // TrialOutcome* constant
}

// PredictionRecord is the persisted summary of one forecast cycle.
// Append-only: the only permitted update is attaching the terminal session
// outcome once the monitored position resolves.
type PredictionRecord struct {
	RecordID  string
	AssetID   string
	Timestamp time.Time

	// Run parameters.
	Lookback     int
	PredictSteps int
	Trials       int

	// Ensemble aggregates.
	Mean        float64
	Median      float64
	Std         float64
	PercentUp   float64 // [0,1]
	AvgAccuracy float64 // [0,100]
	LastPrice   float64

	// Blended signal.
	Action     Action
	Score      float64
	Multiplier float64
	TP         *float64
	SL         *float64

	// Fundamentals snapshot at forecast time, nil when unavailable.
	Fundamentals *Fundamentals

	// Trial outcome bookkeeping.
	TrialOutcomes   []TrialOutcome
	BasePercent     int // avgAccuracy, else percentUp, else 50
	AdjustedPercent int // basePercent +profit -loss, clamped to [0,100]

	// Display estimate: ensemble mean, 60/40-blended with the historical
	// mean of past runs when one was available.
	FinalEstimate  float64
	HistoricalMean *float64

	// Terminal outcome, nil until the session monitor resolves.
	Result      *string
	DurationSec *int64
	FinalPrice  *float64
	EndedAt     *time.Time
}

// Resolved reports whether the terminal outcome has been attached.
func (r *PredictionRecord) Resolved() bool {
	return r.Result != nil
}
