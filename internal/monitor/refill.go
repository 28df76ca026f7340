package monitor

import (
	"context"
	"log"
	"math/rand"

	"market-forecast-lab/internal/forecast"
	"market-forecast-lab/internal/marketdata"
)

// Refiller produces the predicted price used to arm a slot. It prefers a
// fresh one-step forecast from live market data and falls back to a small
// uniform jitter around the latest price when data or training is
// unavailable.
type Refiller struct {
	trainer  *forecast.Trainer
	source   marketdata.Source
	assetID  string
	days     int
	lookback int
	randFn   func() float64
	logger   *log.Logger
}

// RefillerOptions contains configuration for creating a Refiller.
type RefillerOptions struct {
	Trainer  *forecast.Trainer
	Source   marketdata.Source
	AssetID  string
	Days     int // chart window for the one-step forecast, default 30
	Lookback int // default forecast.DefaultLookback
	RandFn   func() float64
	Logger   *log.Logger
}

// NewRefiller creates a new Refiller.
func NewRefiller(opts RefillerOptions) *Refiller {
	days := opts.Days
	if days == 0 {
		days = 30
	}
	lookback := opts.Lookback
	if lookback == 0 {
		lookback = forecast.DefaultLookback
	}
	randFn := opts.RandFn
	if randFn == nil {
		randFn = rand.Float64
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Refiller{
		trainer:  opts.Trainer,
		source:   opts.Source,
		assetID:  opts.AssetID,
		days:     days,
		lookback: lookback,
		randFn:   randFn,
		logger:   logger,
	}
}

// Predict returns the price a refilled slot should be armed with.
// Transient market data or training failures fall back to jitter, they
// never surface to the caller.
func (r *Refiller) Predict(ctx context.Context, lastPrice float64) float64 {
	if r.trainer != nil && r.source != nil {
		chart, err := r.source.MarketChart(ctx, r.assetID, r.days)
		if err != nil {
			r.logger.Printf("Refill chart fetch failed, using jitter: %v", err)
			return r.jitter(lastPrice)
		}

		result, err := r.trainer.ForecastOnce(ctx, chart, r.lookback, 1)
		if err != nil {
			r.logger.Printf("Refill forecast failed, using jitter: %v", err)
			return r.jitter(lastPrice)
		}
		if len(result.Predictions) > 0 {
			return result.Predictions[0]
		}
	}

	return r.jitter(lastPrice)
}

// jitter returns lastPrice shifted by up to one percent either way.
func (r *Refiller) jitter(lastPrice float64) float64 {
	return lastPrice * (1 + (r.randFn()-0.5)*0.02)
}

// SlotLevels derives the tp/sl pair for a slot armed with a predicted
// price. A flat prediction arms neither level, so the slot never resolves.
func SlotLevels(predicted, lastPrice float64) (tp, sl *float64) {
	switch {
	case predicted > lastPrice:
		stop := lastPrice - (predicted - lastPrice)
		if stop < 0 {
			stop = 0
		}
		return ptr(predicted), ptr(stop)
	case predicted < lastPrice:
		return ptr(predicted), ptr(lastPrice + (lastPrice - predicted))
	default:
		return nil, nil
	}
}

func ptr(v float64) *float64 {
	return &v
}
