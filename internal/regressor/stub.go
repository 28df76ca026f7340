package regressor

import "fmt"

// Stub is a deterministic Regressor for tests. It ignores training and
// answers Predict with a configurable function of the input window,
// optionally recording every window it is asked about.
type Stub struct {
	// PredictFn computes the output for a window. Defaults to echoing the
	// last feature value.
	PredictFn func(features []float64) float64

	// FitErr, if set, is returned by Fit to exercise training-failure paths.
	FitErr error

	// PredictErr, if set, is returned by Predict.
	PredictErr error

	FitCalls  int
	Predicted [][]float64 // copy of every window passed to Predict
}

// NewStub returns a stub that predicts the last feature value.
func NewStub() *Stub {
	return &Stub{}
}

// StubFactory wraps a single shared stub in a Factory.
func StubFactory(s *Stub) Factory {
	return func(int) Regressor { return s }
}

func (s *Stub) Fit(features [][]float64, labels []float64, epochs, batchSize int) error {
	if s.FitErr != nil {
		return s.FitErr
	}
	if len(features) == 0 {
		return ErrNoTrainingData
	}
	if len(features) != len(labels) {
		return fmt.Errorf("%w: %d feature rows, %d labels",
			ErrDimensionMismatch, len(features), len(labels))
	}
	s.FitCalls++
	return nil
}

func (s *Stub) Predict(features []float64) (float64, error) {
	if s.PredictErr != nil {
		return 0, s.PredictErr
	}
	window := make([]float64, len(features))
	copy(window, features)
	s.Predicted = append(s.Predicted, window)

	if s.PredictFn != nil {
		return s.PredictFn(features), nil
	}
	if len(features) == 0 {
		return 0, nil
	}
	return features[len(features)-1], nil
}

var _ Regressor = (*Stub)(nil)
