package monitor

import (
	"context"
	"log"
	"time"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/marketdata"
	"market-forecast-lab/internal/storage"
)

// SessionMonitor watches one aggregate position against its tp/sl levels
// and terminates on the first touch. Comparisons are direction-aware: a
// short position takes profit below entry and stops out above it.
type SessionMonitor struct {
	prices    marketdata.PriceSource
	records   storage.PredictionRecordStore
	assetID   string
	recordID  string
	direction domain.Direction
	tp        *float64
	sl        *float64
	interval  time.Duration
	logger    *log.Logger
}

// SessionMonitorOptions contains configuration for creating a SessionMonitor.
type SessionMonitorOptions struct {
	Prices    marketdata.PriceSource
	Records   storage.PredictionRecordStore // optional, terminal outcome is attached best-effort
	AssetID   string
	RecordID  string
	Direction domain.Direction
	TP        *float64
	SL        *float64
	Interval  time.Duration
	Logger    *log.Logger
}

// NewSessionMonitor creates a new SessionMonitor.
func NewSessionMonitor(opts SessionMonitorOptions) *SessionMonitor {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &SessionMonitor{
		prices:    opts.Prices,
		records:   opts.Records,
		assetID:   opts.AssetID,
		recordID:  opts.RecordID,
		direction: opts.Direction,
		tp:        opts.TP,
		sl:        opts.SL,
		interval:  interval,
		logger:    logger,
	}
}

// Run polls the price feed until the position resolves or the context is
// cancelled. A position with neither level armed never resolves, so Run
// then blocks until cancellation.
func (m *SessionMonitor) Run(ctx context.Context) (*domain.SessionOutcome, error) {
	start := time.Now()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			price, err := m.prices.LatestPrice(ctx, m.assetID)
			if err != nil {
				// Transient feed failures skip the tick.
				m.logger.Printf("Session poll price fetch failed: %v", err)
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			result, ok := m.resolve(price)
			if !ok {
				continue
			}

			outcome := &domain.SessionOutcome{
				Result:     result,
				FinalPrice: price,
				Duration:   time.Since(start).Truncate(time.Second),
				EndedAt:    time.Now(),
			}
			m.attachOutcome(ctx, outcome)
			return outcome, nil
		}
	}
}

// resolve applies the direction-aware tp/sl comparison.
func (m *SessionMonitor) resolve(price float64) (string, bool) {
	if m.direction == domain.DirectionShort {
		if m.tp != nil && price <= *m.tp {
			return domain.OutcomeTP, true
		}
		if m.sl != nil && price >= *m.sl {
			return domain.OutcomeSL, true
		}
		return "", false
	}

	return resolveLong(m.tp, m.sl, price)
}

// attachOutcome persists the terminal outcome onto the owning record.
// Best-effort: a missing store or a storage failure only logs.
func (m *SessionMonitor) attachOutcome(ctx context.Context, outcome *domain.SessionOutcome) {
	if m.records == nil || m.recordID == "" {
		return
	}
	if err := m.records.AttachOutcome(ctx, m.recordID, *outcome); err != nil {
		m.logger.Printf("Attach outcome for record %s failed: %v", m.recordID, err)
	}
}
