package forecast

import (
	"context"
	"fmt"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/regressor"
)

const (
	// MaxTrials caps one ensemble run.
	MaxTrials = 1000

	ensembleEpochs    = 20
	ensembleBatchSize = 16
)

// Ensemble runs independent Monte Carlo trials over one price series.
// Each trial trains a fresh, randomly initialized model on the raw
// (unnormalized) prices and produces a single one-step-ahead forecast; the
// spread of those forecasts is the uncertainty estimate.
type Ensemble struct {
	factory regressor.Factory
}

// NewEnsemble builds an Ensemble around a regressor factory.
func NewEnsemble(factory regressor.Factory) *Ensemble {
	return &Ensemble{factory: factory}
}

// Run executes `trials` sequential trials (clamped to [1,MaxTrials]) and
// aggregates the results. Degenerate splits and training failures contribute
// a zero direction accuracy and no forecast sample, so failed trials drag
// the aggregate accuracy down rather than vanish.
//
// Trials run strictly sequentially; ctx is checked between trials, so
// cancellation loses at most the trial in flight.
func (e *Ensemble) Run(ctx context.Context, prices []domain.PricePoint, lookback, trials int) (*domain.EnsembleStats, error) {
	closes := domain.Closes(prices)
	if len(closes) < lookback+2 {
		return nil, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientData, len(closes), lookback+2)
	}

	if trials < 1 {
		trials = 1
	}
	if trials > MaxTrials {
		trials = MaxTrials
	}

	windows, labels := BuildWindows(closes, lookback)
	trainX, trainY, testX, testY := SplitForward(windows, labels)

	accuracies := make([]float64, 0, trials)
	samples := make([]float64, 0, trials)
	results := make([]domain.TrialResult, 0, trials)

	seed := make([]float64, lookback)
	copy(seed, closes[len(closes)-lookback:])

	for t := 0; t < trials; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(trainX) == 0 || len(testX) == 0 {
			accuracies = append(accuracies, 0)
			results = append(results, domain.TrialResult{})
			continue
		}

		model := e.factory(lookback)
		if err := model.Fit(trainX, trainY, ensembleEpochs, ensembleBatchSize); err != nil {
			accuracies = append(accuracies, 0)
			results = append(results, domain.TrialResult{})
			continue
		}

		acc := directionAccuracy(model, testX, testY)
		accuracies = append(accuracies, acc)

		out, err := model.Predict(seed)
		if err != nil {
			results = append(results, domain.TrialResult{DirectionAccuracy: acc})
			continue
		}
		samples = append(samples, out)
		forecast := out
		results = append(results, domain.TrialResult{DirectionAccuracy: acc, Forecast: &forecast})
	}

	lastPrice := closes[len(closes)-1]
	stats := aggregate(samples, accuracies, lastPrice)
	stats.Trials = trials
	stats.Results = results
	return stats, nil
}

// directionAccuracy scores a model by the sign of its move prediction
// relative to the last feature of each test window. Zero moves count as up
// on both sides. A mid-evaluation predict failure scores the trial 0.
func directionAccuracy(model regressor.Regressor, testX [][]float64, testY []float64) float64 {
	var correct int
	for i, w := range testX {
		pred, err := model.Predict(w)
		if err != nil {
			return 0
		}
		last := w[len(w)-1]
		pDir := pred - last
		trueDir := testY[i] - last
		if (pDir >= 0 && trueDir >= 0) || (pDir < 0 && trueDir < 0) {
			correct++
		}
	}
	if len(testX) == 0 {
		return 0
	}
	return float64(correct) / float64(len(testX)) * 100
}

// aggregate folds the per-trial samples and accuracies into EnsembleStats.
// With no samples the distribution stays zero-valued and the suggestion is
// Neutral; callers treat an empty Samples slice as "no usable forecast".
func aggregate(samples, accuracies []float64, lastPrice float64) *domain.EnsembleStats {
	stats := &domain.EnsembleStats{
		LastPrice:  lastPrice,
		Suggested:  domain.DirectionNeutral,
		Samples:    samples,
		Accuracies: accuracies,
	}

	if len(accuracies) > 0 {
		stats.AvgAccuracy = mean(accuracies)
	}
	if len(samples) == 0 {
		return stats
	}

	stats.Mean = mean(samples)
	stats.Median = median(samples)
	stats.Std = populationStd(samples, stats.Mean)

	var up int
	for _, s := range samples {
		if s > lastPrice {
			up++
		}
	}
	stats.PercentUp = float64(up) / float64(len(samples))

	switch {
	case stats.PercentUp >= 0.6:
		stats.Suggested = domain.DirectionLong
		tp := stats.Median + stats.Std*1.5
		sl := lastPrice - stats.Std*1.5
		stats.TP, stats.SL = &tp, &sl
	case stats.PercentUp <= 0.4:
		stats.Suggested = domain.DirectionShort
		tp := stats.Median - stats.Std*1.5
		sl := lastPrice + stats.Std*1.5
		stats.TP, stats.SL = &tp, &sl
	}

	return stats
}
