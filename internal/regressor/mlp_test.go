package regressor

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestMLP_PredictDimensionMismatch(t *testing.T) {
	m := NewMLP(8, rand.New(rand.NewSource(1)))

	_, err := m.Predict([]float64{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestMLP_FitValidation(t *testing.T) {
	m := NewMLP(4, rand.New(rand.NewSource(1)))

	if err := m.Fit(nil, nil, 5, 16); !errors.Is(err, ErrNoTrainingData) {
		t.Errorf("expected ErrNoTrainingData, got %v", err)
	}

	err := m.Fit([][]float64{{1, 2, 3, 4}}, []float64{0.5, 0.6}, 5, 16)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for label count, got %v", err)
	}

	err = m.Fit([][]float64{{1, 2}}, []float64{0.5}, 5, 16)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for feature width, got %v", err)
	}
}

func TestMLP_SeededReproducibility(t *testing.T) {
	features := [][]float64{{0.1, 0.2, 0.3}, {0.2, 0.3, 0.4}, {0.3, 0.4, 0.5}}
	labels := []float64{0.4, 0.5, 0.6}

	run := func() float64 {
		f := NewSeededFactory(42)
		m := f(3)
		if err := m.Fit(features, labels, 10, 2); err != nil {
			t.Fatalf("fit: %v", err)
		}
		out, err := m.Predict([]float64{0.4, 0.5, 0.6})
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		return out
	}

	a, b := run(), run()
	if a != b {
		t.Errorf("same seed must reproduce the same model: %f != %f", a, b)
	}
}

func TestMLP_DistinctInitializations(t *testing.T) {
	// A factory hands every model its own random state: two untrained
	// models should disagree on the same window.
	f := NewSeededFactory(7)
	a, b := f(5), f(5)

	window := []float64{0.5, 0.5, 0.5, 0.5, 0.5}
	outA, err := a.Predict(window)
	if err != nil {
		t.Fatalf("predict a: %v", err)
	}
	outB, err := b.Predict(window)
	if err != nil {
		t.Fatalf("predict b: %v", err)
	}
	if outA == outB {
		t.Error("independent initializations produced identical outputs")
	}
}

func TestMLP_TrainingReducesError(t *testing.T) {
	// Constant-target task: training must move the prediction toward the
	// target compared to the untrained model.
	rng := rand.New(rand.NewSource(3))
	m := NewMLP(4, rng)

	features := make([][]float64, 64)
	labels := make([]float64, 64)
	for i := range features {
		features[i] = []float64{0.9, 0.92, 0.94, 0.96}
		labels[i] = 0.95
	}

	before, err := m.Predict(features[0])
	if err != nil {
		t.Fatalf("predict before: %v", err)
	}

	if err := m.Fit(features, labels, 30, 16); err != nil {
		t.Fatalf("fit: %v", err)
	}

	after, err := m.Predict(features[0])
	if err != nil {
		t.Fatalf("predict after: %v", err)
	}

	if math.Abs(after-0.95) >= math.Abs(before-0.95) {
		t.Errorf("training did not reduce error: before %f, after %f", before, after)
	}
	if math.IsNaN(after) || math.IsInf(after, 0) {
		t.Errorf("training produced a non-finite output: %f", after)
	}
}

func TestStub_RecordsWindows(t *testing.T) {
	s := NewStub()

	out, err := s.Predict([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if out != 3 {
		t.Errorf("default stub must echo the last feature, got %f", out)
	}
	if len(s.Predicted) != 1 {
		t.Fatalf("expected 1 recorded window, got %d", len(s.Predicted))
	}
}
