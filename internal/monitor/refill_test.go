package monitor

import (
	"context"
	"errors"
	"testing"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/forecast"
	"market-forecast-lab/internal/regressor"
)

// fakeSource serves a canned chart; the other reads are unused here.
type fakeSource struct {
	chart    []domain.PricePoint
	chartErr error
}

func (f *fakeSource) MarketChart(context.Context, string, int) ([]domain.PricePoint, error) {
	return f.chart, f.chartErr
}

func (f *fakeSource) LatestPrice(context.Context, string) (float64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeSource) Fundamentals(context.Context, string) (*domain.Fundamentals, error) {
	return nil, nil
}

func chartPoints(values ...float64) []domain.PricePoint {
	points := make([]domain.PricePoint, len(values))
	for i, v := range values {
		points[i] = domain.PricePoint{TimestampMs: int64(i) * 86400000, Price: v}
	}
	return points
}

func TestRefiller_PredictFromForecast(t *testing.T) {
	// Stub predicts 10% above the normalized last feature, so the one-step
	// forecast off a 1..10 chart is 11.
	stub := &regressor.Stub{PredictFn: func(features []float64) float64 {
		return features[len(features)-1] * 1.1
	}}
	r := NewRefiller(RefillerOptions{
		Trainer: forecast.NewTrainer(regressor.StubFactory(stub)),
		Source:  &fakeSource{chart: chartPoints(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)},
		AssetID: "bitcoin",
	})

	got := r.Predict(context.Background(), 10)
	if got != 11 {
		t.Fatalf("Predict() = %v, want 11", got)
	}
}

func TestRefiller_JitterOnChartError(t *testing.T) {
	r := NewRefiller(RefillerOptions{
		Trainer: forecast.NewTrainer(regressor.StubFactory(regressor.NewStub())),
		Source:  &fakeSource{chartErr: errors.New("provider down")},
		AssetID: "bitcoin",
		RandFn:  func() float64 { return 1 },
	})

	got := r.Predict(context.Background(), 100)
	if got != 101 {
		t.Fatalf("Predict() = %v, want 101 (+1%% jitter)", got)
	}
}

func TestRefiller_JitterOnForecastError(t *testing.T) {
	// Two points cannot seed a training window, so the trainer fails and
	// the jitter fallback takes over.
	r := NewRefiller(RefillerOptions{
		Trainer: forecast.NewTrainer(regressor.StubFactory(regressor.NewStub())),
		Source:  &fakeSource{chart: chartPoints(1, 2)},
		AssetID: "bitcoin",
		RandFn:  func() float64 { return 0 },
	})

	got := r.Predict(context.Background(), 100)
	if got != 99 {
		t.Fatalf("Predict() = %v, want 99 (-1%% jitter)", got)
	}
}

func TestRefiller_JitterWithoutSource(t *testing.T) {
	r := NewRefiller(RefillerOptions{RandFn: func() float64 { return 0.5 }})

	if got := r.Predict(context.Background(), 250); got != 250 {
		t.Fatalf("Predict() = %v, want 250 (zero jitter)", got)
	}
}

func TestRefiller_JitterBounds(t *testing.T) {
	r := NewRefiller(RefillerOptions{})

	for i := 0; i < 100; i++ {
		got := r.Predict(context.Background(), 100)
		if got < 99 || got > 101 {
			t.Fatalf("Predict() = %v, want within [99, 101]", got)
		}
	}
}

func TestSlotLevels(t *testing.T) {
	tests := []struct {
		name      string
		predicted float64
		lastPrice float64
		wantTP    *float64
		wantSL    *float64
	}{
		{"bullish", 110, 100, ptr(110), ptr(90)},
		{"bearish", 95, 100, ptr(95), ptr(105)},
		{"flat", 100, 100, nil, nil},
		{"stop clamped at zero", 250, 100, ptr(250), ptr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, sl := SlotLevels(tt.predicted, tt.lastPrice)
			if !floatPtrEqual(tp, tt.wantTP) {
				t.Errorf("tp = %v, want %v", fmtPtr(tp), fmtPtr(tt.wantTP))
			}
			if !floatPtrEqual(sl, tt.wantSL) {
				t.Errorf("sl = %v, want %v", fmtPtr(sl), fmtPtr(tt.wantSL))
			}
		})
	}
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtPtr(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
