package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/regressor"
)

// ErrInsufficientData reports a series too short to train on. Callers
// distinguish it from training failures to pick the right fallback.
var ErrInsufficientData = errors.New("forecast: insufficient price history")

const (
	// DefaultLookback is the feature window length for all models.
	DefaultLookback = 8

	trainerEpochs    = 30
	trainerBatchSize = 16
)

// Trainer runs a single train/forecast cycle over a price series.
// The series is normalized by its maximum before training; forecasts are
// denormalized on the way out.
type Trainer struct {
	factory regressor.Factory
}

// NewTrainer builds a Trainer around a regressor factory.
func NewTrainer(factory regressor.Factory) *Trainer {
	return &Trainer{factory: factory}
}

// ForecastOnce trains one model on the series and produces a recursive
// steps-ahead forecast plus the MAPE on the held-out forward split.
//
// Fewer than lookback+2 points is ErrInsufficientData. The recursive loop
// feeds each raw model output back into the seed window and denormalizes
// only the emitted value, so forecast drift compounds in normalized space.
func (t *Trainer) ForecastOnce(ctx context.Context, prices []domain.PricePoint, lookback, steps int) (*domain.ForecastResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	closes := domain.Closes(prices)
	if len(closes) < lookback+2 {
		return nil, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientData, len(closes), lookback+2)
	}

	maxVal := closes[0]
	for _, v := range closes[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal <= 0 || math.IsNaN(maxVal) {
		return nil, fmt.Errorf("%w: series max %v is not normalizable", ErrInsufficientData, maxVal)
	}

	norm := make([]float64, len(closes))
	for i, v := range closes {
		norm[i] = v / maxVal
	}

	windows, labels := BuildWindows(norm, lookback)
	trainX, trainY, testX, testY := SplitForward(windows, labels)

	model := t.factory(lookback)
	if err := model.Fit(trainX, trainY, trainerEpochs, trainerBatchSize); err != nil {
		return nil, fmt.Errorf("forecast: training failed: %w", err)
	}

	mape, err := testMAPE(model, testX, testY)
	if err != nil {
		return nil, fmt.Errorf("forecast: evaluation failed: %w", err)
	}

	seed := make([]float64, lookback)
	copy(seed, norm[len(norm)-lookback:])
	preds := make([]float64, 0, steps)
	for s := 0; s < steps; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := model.Predict(seed)
		if err != nil {
			return nil, fmt.Errorf("forecast: step %d failed: %w", s, err)
		}
		preds = append(preds, out*maxVal)
		seed = append(seed[1:], out)
	}

	return &domain.ForecastResult{Predictions: preds, MAPE: mape}, nil
}

// testMAPE computes mean absolute percentage error over the test split,
// skipping zero labels. Nil when the split is empty or every label is zero.
func testMAPE(model regressor.Regressor, testX [][]float64, testY []float64) (*float64, error) {
	var sum float64
	var cnt int
	for i, w := range testX {
		if testY[i] == 0 {
			continue
		}
		pred, err := model.Predict(w)
		if err != nil {
			return nil, err
		}
		sum += math.Abs((testY[i] - pred) / testY[i])
		cnt++
	}
	if cnt == 0 {
		return nil, nil
	}
	mape := sum / float64(cnt)
	return &mape, nil
}
