// Package orchestrator runs the full forecast cycle.
// It coordinates: market data → ensemble → signal → persistence → monitors
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"market-forecast-lab/internal/advisor"
	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/forecast"
	"market-forecast-lab/internal/idhash"
	"market-forecast-lab/internal/marketdata"
	"market-forecast-lab/internal/monitor"
	"market-forecast-lab/internal/observability"
	"market-forecast-lab/internal/signal"
	"market-forecast-lab/internal/storage"
)

// MaxTrialOutcomes bounds how many per-trial forecasts are labelled and
// persisted on the record.
const MaxTrialOutcomes = 10

// Orchestrator wires one forecast cycle end to end and owns monitor
// startup. Stores and the advisor are optional; a cycle without them
// still forecasts and blends, it just persists nothing.
type Orchestrator struct {
	source   marketdata.Source
	prices   marketdata.PriceSource
	trainer  *forecast.Trainer
	ensemble *forecast.Ensemble
	advisor  *advisor.Advisor

	records storage.PredictionRecordStore
	events  storage.SessionEventStore
	samples storage.TrialSampleStore

	assetID  string
	days     int
	lookback int
	steps    int // 0 derives the horizon from history length
	trials   int

	monitorEnabled bool
	slots          int
	pollInterval   time.Duration

	randFn func() float64
	logger *log.Logger

	// Monitors from the previous cycle; replaced on every new start.
	monitorMu     sync.Mutex
	cancelMonitor context.CancelFunc
	monitorWG     sync.WaitGroup
}

// Options for creating an Orchestrator.
type Options struct {
	Source   marketdata.Source
	Prices   marketdata.PriceSource // defaults to Source
	Trainer  *forecast.Trainer
	Ensemble *forecast.Ensemble
	Advisor  *advisor.Advisor

	Records storage.PredictionRecordStore
	Events  storage.SessionEventStore
	Samples storage.TrialSampleStore

	AssetID  string
	Days     int // default 30
	Lookback int // default forecast.DefaultLookback
	Steps    int // default: derived per cycle via forecast.Horizon
	Trials   int // default 10

	MonitorEnabled bool
	Slots          int
	PollInterval   time.Duration

	RandFn func() float64
	Logger *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	prices := opts.Prices
	if prices == nil {
		prices = opts.Source
	}
	days := opts.Days
	if days == 0 {
		days = 30
	}
	lookback := opts.Lookback
	if lookback == 0 {
		lookback = forecast.DefaultLookback
	}
	trials := opts.Trials
	if trials == 0 {
		trials = 10
	}
	randFn := opts.RandFn
	if randFn == nil {
		randFn = rand.Float64
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Orchestrator{
		source:         opts.Source,
		prices:         prices,
		trainer:        opts.Trainer,
		ensemble:       opts.Ensemble,
		advisor:        opts.Advisor,
		records:        opts.Records,
		events:         opts.Events,
		samples:        opts.Samples,
		assetID:        opts.AssetID,
		days:           days,
		lookback:       lookback,
		steps:          opts.Steps,
		trials:         trials,
		monitorEnabled: opts.MonitorEnabled,
		slots:          opts.Slots,
		pollInterval:   opts.PollInterval,
		randFn:         randFn,
		logger:         logger,
	}
}

// CycleResult contains everything one forecast cycle produced.
type CycleResult struct {
	Record *domain.PredictionRecord
	Signal domain.PositionSignal
	Stats  *domain.EnsembleStats // nil when the ensemble could not run

	// Forecasts holds the display forecast values after the fundamental
	// multiplier and the historical-mean blend.
	Forecasts     []float64
	FinalEstimate float64
}

// RunCycle executes one full forecast cycle.
// Phases:
//  1. Fetch price history
//  2. Monte Carlo ensemble (fallback: single trainer forecast + jitter)
//  3. Fundamentals and historical mean, both best-effort
//  4. Blend the position signal and label trial outcomes
//  5. Persist record and samples, start monitors
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	now := time.Now()

	chart, err := o.source.MarketChart(ctx, o.assetID, o.days)
	if err != nil {
		observability.RecordCycle("error", time.Since(now).Seconds())
		return nil, fmt.Errorf("fetch market chart: %w", err)
	}
	if len(chart) == 0 {
		return nil, marketdata.ErrNoData
	}
	lastPrice := domain.LastPrice(chart)

	steps := o.steps
	if steps == 0 {
		steps = forecast.Horizon(len(chart))
	}

	stats, err := o.ensemble.Run(ctx, chart, o.lookback, o.trials)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Degenerate history falls through to the fallback forecast.
		o.logger.Printf("Ensemble run failed, falling back: %v", err)
		stats = nil
	}

	fundamentals := o.fetchFundamentals(ctx)
	histMean := o.historicalMean(ctx)

	sig := signal.Blend(stats, fundamentals, lastPrice)

	result := &CycleResult{Signal: sig, Stats: stats}

	var outcomes []domain.TrialOutcome
	var profit, loss int
	if stats != nil {
		observability.RecordTrials(stats.Trials)
		outcomes, profit, loss = signal.LabelTrialOutcomes(stats.Samples, sig.Action, lastPrice, MaxTrialOutcomes)
		result.Forecasts = signal.AdjustForecast(stats.Samples, sig.Multiplier, histMean)
		result.FinalEstimate = signal.FinalEstimate(stats.Mean, histMean)
	} else {
		observability.RecordFallback()
		base := o.fallbackForecast(ctx, chart, steps, lastPrice)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Forecasts = []float64{base * (1 + (o.randFn()-0.5)*0.02)}
		result.FinalEstimate = base
	}

	base := signal.BasePercent(stats)
	trials := o.trials
	if stats != nil {
		trials = stats.Trials
	}

	record := &domain.PredictionRecord{
		RecordID:     idhash.ComputeRecordID(o.assetID, now.UnixMilli(), o.lookback, steps, trials),
		AssetID:      o.assetID,
		Timestamp:    now,
		Lookback:     o.lookback,
		PredictSteps: steps,
		Trials:       trials,
		LastPrice:    lastPrice,

		Action:     sig.Action,
		Score:      sig.Score,
		Multiplier: sig.Multiplier,
		TP:         sig.TP,
		SL:         sig.SL,

		Fundamentals:    fundamentals,
		TrialOutcomes:   outcomes,
		BasePercent:     base,
		AdjustedPercent: signal.AdjustedPercent(base, profit, loss),

		FinalEstimate:  result.FinalEstimate,
		HistoricalMean: histMean,
	}
	if stats != nil {
		record.Mean = stats.Mean
		record.Median = stats.Median
		record.Std = stats.Std
		record.PercentUp = stats.PercentUp
		record.AvgAccuracy = stats.AvgAccuracy
	}
	result.Record = record

	o.persist(ctx, record, stats, outcomes)
	o.startMonitors(ctx, record, sig)

	observability.RecordSignal(string(sig.Action))
	observability.RecordCycle("success", time.Since(now).Seconds())
	return result, nil
}

// RunLoop repeats RunCycle on the given interval until the context is
// cancelled. Cycles run sequentially, so they never overlap; a failed
// cycle is logged and the loop keeps going.
func (o *Orchestrator) RunLoop(ctx context.Context, interval time.Duration) error {
	o.logger.Printf("Starting forecast loop (asset: %s, interval: %v)...", o.assetID, interval)

	// Run immediately on start
	o.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.stopMonitors()
			return ctx.Err()
		case <-ticker.C:
			o.runOnce(ctx)
		}
	}
}

func (o *Orchestrator) runOnce(ctx context.Context) {
	start := time.Now()
	result, err := o.RunCycle(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			o.logger.Printf("Forecast cycle failed: %v", err)
		}
		return
	}
	o.logger.Printf("Forecast cycle completed in %v: action=%s score=%.3f estimate=%.4f",
		time.Since(start).Truncate(time.Millisecond), result.Signal.Action, result.Signal.Score, result.FinalEstimate)
}

// fetchFundamentals is best-effort; provider failures only log.
func (o *Orchestrator) fetchFundamentals(ctx context.Context) *domain.Fundamentals {
	f, err := o.source.Fundamentals(ctx, o.assetID)
	if err != nil {
		o.logger.Printf("Fundamentals fetch failed: %v", err)
		return nil
	}
	return f
}

// historicalMean is best-effort; a missing advisor or a storage failure
// yields nil and the blend proceeds without it.
func (o *Orchestrator) historicalMean(ctx context.Context) *float64 {
	if o.advisor == nil {
		return nil
	}
	mean, err := o.advisor.HistoricalMean(ctx)
	if err != nil {
		o.logger.Printf("Historical mean fetch failed: %v", err)
		return nil
	}
	return mean
}

// fallbackForecast produces a base estimate when the ensemble was
// unusable: one trainer forecast, else the latest price.
func (o *Orchestrator) fallbackForecast(ctx context.Context, chart []domain.PricePoint, steps int, lastPrice float64) float64 {
	if o.trainer != nil {
		result, err := o.trainer.ForecastOnce(ctx, chart, o.lookback, steps)
		if err == nil && len(result.Predictions) > 0 {
			return result.Predictions[0]
		}
		if err != nil {
			o.logger.Printf("Fallback forecast failed: %v", err)
		}
	}
	return lastPrice
}

// persist writes the record and its per-trial samples. Both writes are
// best-effort: storage failures log and the cycle result stands.
func (o *Orchestrator) persist(ctx context.Context, record *domain.PredictionRecord, stats *domain.EnsembleStats, outcomes []domain.TrialOutcome) {
	if o.records != nil {
		if err := o.records.Insert(ctx, record); err != nil {
			o.logger.Printf("Persist record %s failed: %v", record.RecordID, err)
		}
	}

	if o.samples == nil || stats == nil || len(stats.Samples) == 0 {
		return
	}
	// Results keeps each forecast paired with its own trial's accuracy;
	// trials without a forecast persist nothing.
	samples := make([]*domain.TrialSample, 0, len(stats.Samples))
	sampleIdx := 0
	for trial, tr := range stats.Results {
		if tr.Forecast == nil {
			continue
		}
		s := &domain.TrialSample{
			RecordID:   record.RecordID,
			TrialIndex: trial,
			Forecast:   *tr.Forecast,
			Accuracy:   tr.DirectionAccuracy,
		}
		if sampleIdx < len(outcomes) {
			s.Outcome = outcomes[sampleIdx].Outcome
		}
		sampleIdx++
		samples = append(samples, s)
	}
	if err := o.samples.InsertBulk(ctx, samples); err != nil {
		o.logger.Printf("Persist trial samples for %s failed: %v", record.RecordID, err)
	}
}

// startMonitors replaces the previous cycle's monitors with fresh ones
// for this record. No-op when monitoring is disabled.
func (o *Orchestrator) startMonitors(ctx context.Context, record *domain.PredictionRecord, sig domain.PositionSignal) {
	if !o.monitorEnabled || o.prices == nil {
		return
	}

	o.stopMonitors()

	monitorCtx, cancel := context.WithCancel(ctx)
	o.monitorMu.Lock()
	o.cancelMonitor = cancel
	o.monitorMu.Unlock()

	refiller := monitor.NewRefiller(monitor.RefillerOptions{
		Trainer:  o.trainer,
		Source:   o.source,
		AssetID:  o.assetID,
		Days:     o.days,
		Lookback: o.lookback,
		Logger:   o.logger,
	})
	slotMonitor := monitor.NewSlotMonitor(monitor.SlotMonitorOptions{
		Prices:   o.prices,
		Refiller: refiller,
		AssetID:  o.assetID,
		RecordID: record.RecordID,
		Slots:    o.slots,
		Interval: o.pollInterval,
		Logger:   o.logger,
	})

	o.monitorWG.Add(2)
	go func() {
		defer o.monitorWG.Done()
		o.recordSlotEvents(monitorCtx, slotMonitor.Events())
	}()
	go func() {
		defer o.monitorWG.Done()
		if err := slotMonitor.Run(monitorCtx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Printf("Slot monitor stopped: %v", err)
		}
	}()

	if sig.Action == domain.ActionNeutral {
		return
	}
	sessionMonitor := monitor.NewSessionMonitor(monitor.SessionMonitorOptions{
		Prices:    o.prices,
		Records:   o.records,
		AssetID:   o.assetID,
		RecordID:  record.RecordID,
		Direction: domain.DirectionForAction(sig.Action),
		TP:        sig.TP,
		SL:        sig.SL,
		Interval:  o.pollInterval,
		Logger:    o.logger,
	})
	o.monitorWG.Add(1)
	go func() {
		defer o.monitorWG.Done()
		outcome, err := sessionMonitor.Run(monitorCtx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				o.logger.Printf("Session monitor stopped: %v", err)
			}
			return
		}
		observability.RecordSessionResolved(outcome.Result)
		o.logger.Printf("Session for record %s resolved: %s at %.4f after %v",
			record.RecordID, outcome.Result, outcome.FinalPrice, outcome.Duration)
	}()
}

// stopMonitors cancels the previous cycle's monitors and waits them out.
func (o *Orchestrator) stopMonitors() {
	o.monitorMu.Lock()
	cancel := o.cancelMonitor
	o.cancelMonitor = nil
	o.monitorMu.Unlock()

	if cancel != nil {
		cancel()
		o.monitorWG.Wait()
	}
}

// recordSlotEvents drains the slot event stream into the event store.
// Best-effort: without a store the stream is still drained.
func (o *Orchestrator) recordSlotEvents(ctx context.Context, events <-chan domain.SlotEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			observability.RecordSlotEvent(e.Type)
			if o.events == nil {
				continue
			}
			eventID := idhash.ComputeEventID(e.RecordID, e.Type, e.Slot, e.At.UnixMilli())
			if err := o.events.Append(ctx, eventID, &e); err != nil {
				o.logger.Printf("Persist slot event failed: %v", err)
			}
		}
	}
}
