// Package advisor turns stored prediction history into a conservative
// trade recommendation. Advice is only granted when the recorded model
// accuracy is near-perfect; everything else is a decline.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/storage"
)

// Defaults.
const (
	DefaultHistoryLimit = 200

	// AccuracyThreshold is the mean recorded accuracy, in percent, below
	// which advice is declined.
	AccuracyThreshold = 99.0
)

// ErrNoHistory reports that no prediction records exist to advise from.
var ErrNoHistory = errors.New("advisor: no prediction history")

// Advice is the advisor's answer: either a granted recommendation copied
// from the latest record, or a decline carrying the observed accuracy.
type Advice struct {
	Granted      bool
	Action       domain.Action
	TP           *float64
	SL           *float64
	RecordID     string  // record the recommendation was copied from
	MeanAccuracy float64 // mean recorded accuracy in percent, 2 decimals
	Reason       string
}

// Advisor reads prediction history from storage.
type Advisor struct {
	records storage.PredictionRecordStore
	samples storage.TrialSampleStore // optional, mean fallback only
	limit   int
	logger  *log.Logger
}

// Options contains configuration for creating an Advisor.
type Options struct {
	Records storage.PredictionRecordStore
	Samples storage.TrialSampleStore
	Limit   int
	Logger  *log.Logger
}

// New creates a new Advisor.
func New(opts Options) *Advisor {
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Advisor{
		records: opts.Records,
		samples: opts.Samples,
		limit:   limit,
		logger:  logger,
	}
}

// Advise grants the latest record's position when the mean recorded
// accuracy over recent history reaches the threshold, and declines with
// the observed mean otherwise.
func (a *Advisor) Advise(ctx context.Context) (*Advice, error) {
	records, err := a.records.GetRecent(ctx, a.limit)
	if err != nil {
		return nil, fmt.Errorf("fetch recent records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoHistory
	}

	var sum float64
	for _, r := range records {
		sum += r.AvgAccuracy
	}
	meanAccuracy := math.Round(sum/float64(len(records))*100) / 100

	if meanAccuracy < AccuracyThreshold {
		return &Advice{
			MeanAccuracy: meanAccuracy,
			Reason:       fmt.Sprintf("mean recorded accuracy %.2f%% below %.0f%% threshold", meanAccuracy, AccuracyThreshold),
		}, nil
	}

	latest := records[0]
	return &Advice{
		Granted:      true,
		Action:       latest.Action,
		TP:           latest.TP,
		SL:           latest.SL,
		RecordID:     latest.RecordID,
		MeanAccuracy: meanAccuracy,
	}, nil
}

// HistoricalMean averages the stored ensemble means over recent history.
// A record whose distribution is zero-valued (every trial degenerate)
// falls back to averaging its persisted trial samples when a sample store
// is wired. Returns nil when nothing contributes.
func (a *Advisor) HistoricalMean(ctx context.Context) (*float64, error) {
	records, err := a.records.GetRecent(ctx, a.limit)
	if err != nil {
		return nil, fmt.Errorf("fetch recent records: %w", err)
	}

	var sum float64
	var count int
	for _, r := range records {
		if r.Mean != 0 {
			sum += r.Mean
			count++
			continue
		}
		if m, ok := a.sampleMean(ctx, r.RecordID); ok {
			sum += m
			count++
		}
	}
	if count == 0 {
		return nil, nil
	}

	mean := sum / float64(count)
	return &mean, nil
}

// sampleMean averages the persisted per-trial forecasts for one record.
func (a *Advisor) sampleMean(ctx context.Context, recordID string) (float64, bool) {
	if a.samples == nil {
		return 0, false
	}

	samples, err := a.samples.GetByRecordID(ctx, recordID)
	if err != nil {
		a.logger.Printf("Sample fallback for record %s failed: %v", recordID, err)
		return 0, false
	}
	if len(samples) == 0 {
		return 0, false
	}

	var sum float64
	for _, s := range samples {
		sum += s.Forecast
	}
	return sum / float64(len(samples)), true
}
