package domain

// Direction is the ensemble's suggested market direction.
type Direction string

// Direction constants. Distinct from signal Action on purpose: the ensemble
// speaks Long/Short, the blender speaks Buy/Sell. See ActionForDirection.
const (
	DirectionLong    Direction = "Long"
	DirectionShort   Direction = "Short"
	DirectionNeutral Direction = "Neutral"
)

// ForecastResult is the output of a single train/forecast cycle.
type ForecastResult struct {
	// Predictions holds the denormalized recursive forecast, one value per
	// requested step, in step order.
	Predictions []float64

	// MAPE is the mean absolute percentage error on the held-out split.
	// Nil when the test split was empty or every test label was zero.
	MAPE *float64
}

// AccuracyPercent converts MAPE into a display accuracy in [0,100].
// Returns nil when MAPE is unknown.
func (r *ForecastResult) AccuracyPercent() *float64 {
	if r == nil || r.MAPE == nil {
		return nil
	}
	acc := (1 - *r.MAPE) * 100
	if acc < 0 {
		acc = 0
	}
	return &acc
}

// TrialResult is the outcome of one Monte Carlo trial.
// Ephemeral: trials are aggregated into EnsembleStats and only the forecast
// samples survive individually.
type TrialResult struct {
	DirectionAccuracy float64  // percent of test windows with correct sign, [0,100]
	Forecast          *float64 // one-step-ahead forecast; nil for degenerate trials
}

// EnsembleStats aggregates a Monte Carlo ensemble run.
type EnsembleStats struct {
	Trials int // trials actually run, >= 1

	// Distribution of the per-trial one-step forecasts. Zero-valued when
	// Samples is empty (every trial was degenerate).
	Mean   float64
	Median float64
	Std    float64 // population standard deviation

	// PercentUp is the fraction of forecast samples above LastPrice, in [0,1].
	PercentUp float64

	// AvgAccuracy is the mean per-trial direction accuracy, in [0,100].
	// Degenerate trials contribute 0, biasing the aggregate downward.
	AvgAccuracy float64

	LastPrice float64 // last known raw price the samples are compared against

	Suggested Direction
	TP        *float64 // nil for Neutral
	SL        *float64 // nil for Neutral

	// Samples holds the raw per-trial one-step forecasts for downstream use.
	Samples []float64

	// Accuracies holds the raw per-trial direction accuracies, one per trial.
	Accuracies []float64

	// Results holds every trial in run order. Samples and Accuracies are
	// flattened views of this slice; Results is the only place a forecast
	// stays paired with the accuracy of the trial that produced it.
	Results []TrialResult
}

// TrialSample is one persisted per-trial observation, keyed to the
// prediction record whose ensemble run produced it. Append-only.
type TrialSample struct {
	RecordID   string
	TrialIndex int
	Forecast   float64
	Accuracy   float64 // direction accuracy percent
	Outcome    string  // TrialOutcome* constant, set by the signal layer
}

// Trial outcome labels relative to the blended action.
const (
	TrialOutcomeProfit  = "profit"
	TrialOutcomeLoss    = "loss"
	TrialOutcomeNeutral = "neutral"
)
