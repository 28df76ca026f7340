package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"market-forecast-lab/internal/domain"
)

// scriptedPrices replays a price sequence, one value per call, holding the
// last value once the script runs out.
type scriptedPrices struct {
	mu     sync.Mutex
	prices []float64
	idx    int
}

func (s *scriptedPrices) LatestPrice(context.Context, string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price := s.prices[s.idx]
	if s.idx < len(s.prices)-1 {
		s.idx++
	}
	return price, nil
}

// jitterRefiller arms slots at a fixed fraction above the live price.
func jitterRefiller(randValue float64) *Refiller {
	return NewRefiller(RefillerOptions{RandFn: func() float64 { return randValue }})
}

// collectEvents drains monitor events until want of the given type arrive
// or the deadline passes.
func collectEvents(t *testing.T, events <-chan domain.SlotEvent, eventType string, want int) []domain.SlotEvent {
	t.Helper()

	var got []domain.SlotEvent
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == eventType {
				got = append(got, e)
				if len(got) == want {
					return got
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d %s events, got %d", want, eventType, len(got))
		}
	}
}

func TestSlotMonitor_ResolvesTPAndRefills(t *testing.T) {
	// Slots arm at +1% of the live price: first fill at 100 gives tp=101,
	// sl=99. The third tick crosses tp.
	prices := &scriptedPrices{prices: []float64{100, 100.5, 101.2}}
	m := NewSlotMonitor(SlotMonitorOptions{
		Prices:   prices,
		Refiller: jitterRefiller(1),
		AssetID:  "bitcoin",
		RecordID: "rec-1",
		Slots:    1,
		Interval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	resolved := collectEvents(t, m.Events(), domain.SlotEventResolved, 1)
	e := resolved[0]
	if e.Result != domain.OutcomeTP {
		t.Errorf("Result = %q, want %q", e.Result, domain.OutcomeTP)
	}
	if e.FinalPrice != 101.2 {
		t.Errorf("FinalPrice = %v, want 101.2", e.FinalPrice)
	}
	if e.RecordID != "rec-1" {
		t.Errorf("RecordID = %q, want %q", e.RecordID, "rec-1")
	}
	if e.Slot != 0 {
		t.Errorf("Slot = %d, want 0", e.Slot)
	}

	// The slot refills immediately around the resolving price.
	refills := collectEvents(t, m.Events(), domain.SlotEventRefilled, 1)
	if got, want := refills[0].Predicted, 101.2*1.01; !closeTo(got, want) {
		t.Errorf("refill Predicted = %v, want %v", got, want)
	}
}

func TestSlotMonitor_ResolvesSL(t *testing.T) {
	prices := &scriptedPrices{prices: []float64{100, 98.9}}
	m := NewSlotMonitor(SlotMonitorOptions{
		Prices:   prices,
		Refiller: jitterRefiller(1),
		AssetID:  "bitcoin",
		Slots:    1,
		Interval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	resolved := collectEvents(t, m.Events(), domain.SlotEventResolved, 1)
	if resolved[0].Result != domain.OutcomeSL {
		t.Errorf("Result = %q, want %q", resolved[0].Result, domain.OutcomeSL)
	}
	if resolved[0].FinalPrice != 98.9 {
		t.Errorf("FinalPrice = %v, want 98.9", resolved[0].FinalPrice)
	}
}

func TestSlotMonitor_UnarmedSlotNeverResolves(t *testing.T) {
	// Zero jitter predicts exactly the live price, so slots arm with no
	// levels and can never transition, whatever the feed does.
	prices := &scriptedPrices{prices: []float64{100, 150, 10}}
	m := NewSlotMonitor(SlotMonitorOptions{
		Prices:   prices,
		Refiller: jitterRefiller(0.5),
		AssetID:  "bitcoin",
		Slots:    2,
		Interval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	refills := collectEvents(t, m.Events(), domain.SlotEventRefilled, 2)
	for _, e := range refills {
		if e.TP != nil || e.SL != nil {
			t.Errorf("slot %d armed with tp=%v sl=%v, want neither", e.Slot, fmtPtr(e.TP), fmtPtr(e.SL))
		}
	}

	select {
	case e := <-m.Events():
		if e.Type == domain.SlotEventResolved {
			t.Fatalf("unarmed slot resolved: %+v", e)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSlotMonitor_AllSlotsFilledOnStart(t *testing.T) {
	prices := &scriptedPrices{prices: []float64{100}}
	m := NewSlotMonitor(SlotMonitorOptions{
		Prices:   prices,
		Refiller: jitterRefiller(1),
		AssetID:  "bitcoin",
		Slots:    3,
		Interval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	refills := collectEvents(t, m.Events(), domain.SlotEventRefilled, 3)
	seen := make(map[int]bool)
	for _, e := range refills {
		seen[e.Slot] = true
		if e.Predicted != 101 {
			t.Errorf("slot %d Predicted = %v, want 101", e.Slot, e.Predicted)
		}
	}
	if len(seen) != 3 {
		t.Errorf("distinct slots filled = %d, want 3", len(seen))
	}
}

func TestSlotMonitor_StopsOnCancel(t *testing.T) {
	prices := &scriptedPrices{prices: []float64{100}}
	m := NewSlotMonitor(SlotMonitorOptions{
		Prices:   prices,
		Refiller: jitterRefiller(0.5),
		AssetID:  "bitcoin",
		Slots:    1,
		Interval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func closeTo(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
