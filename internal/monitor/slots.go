package monitor

import (
	"context"
	"log"
	"time"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/marketdata"
	"market-forecast-lab/internal/observability"
)

// Slot monitor defaults.
const (
	DefaultSlotCount    = 10
	DefaultPollInterval = 3 * time.Second
)

// SlotMonitor tracks a fixed set of parallel position slots against a live
// price feed. Slot state is owned exclusively by the Run loop; resolved
// slots are refilled immediately with a fresh prediction.
type SlotMonitor struct {
	prices   marketdata.PriceSource
	refiller *Refiller
	assetID  string
	recordID string
	slots    []domain.BoxState
	interval time.Duration
	events   chan domain.SlotEvent
	logger   *log.Logger
}

// SlotMonitorOptions contains configuration for creating a SlotMonitor.
type SlotMonitorOptions struct {
	Prices   marketdata.PriceSource
	Refiller *Refiller
	AssetID  string
	RecordID string // owning prediction record, may be empty
	Slots    int
	Interval time.Duration
	Logger   *log.Logger
}

// NewSlotMonitor creates a new SlotMonitor.
func NewSlotMonitor(opts SlotMonitorOptions) *SlotMonitor {
	slots := opts.Slots
	if slots == 0 {
		slots = DefaultSlotCount
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &SlotMonitor{
		prices:   opts.Prices,
		refiller: opts.Refiller,
		assetID:  opts.AssetID,
		recordID: opts.RecordID,
		slots:    make([]domain.BoxState, slots),
		interval: interval,
		events:   make(chan domain.SlotEvent, slots*4),
		logger:   logger,
	}
}

// Events returns the stream of slot resolutions and refills. The channel
// is buffered; the monitor drops events rather than stall the poll loop
// when the consumer falls behind.
func (m *SlotMonitor) Events() <-chan domain.SlotEvent {
	return m.events
}

// Run arms every slot and polls the price feed until the context is
// cancelled. It blocks; the returned error is always the context error.
func (m *SlotMonitor) Run(ctx context.Context) error {
	price, err := m.prices.LatestPrice(ctx, m.assetID)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	for i := range m.slots {
		m.fill(ctx, i, price)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	m.logger.Printf("Slot monitor started: %d slots, poll interval %v", len(m.slots), m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.poll(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

// poll fetches one live price and checks every active slot against it.
func (m *SlotMonitor) poll(ctx context.Context) {
	price, err := m.prices.LatestPrice(ctx, m.assetID)
	if err != nil {
		// Transient feed failures skip the tick.
		m.logger.Printf("Slot poll price fetch failed: %v", err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	now := time.Now()
	for i := range m.slots {
		s := &m.slots[i]
		if !s.Active {
			continue
		}

		result, ok := resolveLong(s.TP, s.SL, price)
		if !ok {
			continue
		}

		s.Active = false
		m.emit(domain.SlotEvent{
			RecordID:   m.recordID,
			Type:       domain.SlotEventResolved,
			Slot:       i,
			Result:     result,
			FinalPrice: price,
			Duration:   now.Sub(s.StartedAt).Truncate(time.Second),
			At:         now,
		})

		m.fill(ctx, i, price)
		if ctx.Err() != nil {
			return
		}
	}
}

// fill arms one slot with a fresh prediction around the given price.
func (m *SlotMonitor) fill(ctx context.Context, i int, price float64) {
	predicted := m.refiller.Predict(ctx, price)
	if ctx.Err() != nil {
		return
	}

	tp, sl := SlotLevels(predicted, price)
	now := time.Now()
	m.slots[i] = domain.BoxState{
		ID:        i,
		Active:    true,
		Predicted: predicted,
		TP:        tp,
		SL:        sl,
		StartedAt: now,
	}

	m.emit(domain.SlotEvent{
		RecordID:  m.recordID,
		Type:      domain.SlotEventRefilled,
		Slot:      i,
		Predicted: predicted,
		TP:        tp,
		SL:        sl,
		At:        now,
	})
}

// emit forwards an event without ever blocking the poll loop.
func (m *SlotMonitor) emit(e domain.SlotEvent) {
	select {
	case m.events <- e:
	default:
		observability.RecordSlotEventDropped()
		m.logger.Printf("Slot event dropped: slow consumer (slot %d, type %s)", e.Slot, e.Type)
	}
}

// resolveLong applies the long-style slot comparison. A slot with neither
// level armed never transitions.
func resolveLong(tp, sl *float64, price float64) (string, bool) {
	if tp != nil && price >= *tp {
		return domain.OutcomeTP, true
	}
	if sl != nil && price <= *sl {
		return domain.OutcomeSL, true
	}
	return "", false
}
