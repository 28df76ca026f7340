// Package regressor provides the small feed-forward regression models used
// by the forecasting pipeline.
package regressor

// Regressor fits a mapping from fixed-length feature windows to a single
// value. Architecture is deterministic; initialization is stochastic unless
// a seeded factory is used.
type Regressor interface {
	// Fit trains on the given pairs for a fixed budget. Input order is the
	// caller's concern; Fit may shuffle batches internally.
	Fit(features [][]float64, labels []float64, epochs, batchSize int) error

	// Predict returns the model output for a single feature window.
	Predict(features []float64) (float64, error)
}

// Factory produces a freshly initialized Regressor for the given input
// width. The ensemble calls it once per trial so every trial trains from
// scratch.
type Factory func(inputSize int) Regressor
