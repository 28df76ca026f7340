package regressor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Training defaults matching the dashboard model: two hidden layers of 32
// and 16 rectified units, a single linear output, mean absolute error loss
// minimized with Adam.
const (
	DefaultHidden1      = 32
	DefaultHidden2      = 16
	DefaultLearningRate = 0.01

	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
)

var (
	// ErrNoTrainingData is returned by Fit when no pairs are supplied.
	ErrNoTrainingData = errors.New("no training data")

	// ErrDimensionMismatch is returned when feature width does not match
	// the model input size or labels do not match features.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// MLP is a dense feed-forward regressor with ReLU hidden layers and a
// linear output, trained by Adam on mean absolute error.
type MLP struct {
	sizes []int // layer widths, input first, 1 last

	// weights[l][i][j] connects node i of layer l to node j of layer l+1.
	weights [][][]float64
	biases  [][]float64

	// Adam moment estimates, same shapes as weights/biases.
	mW, vW [][][]float64
	mB, vB [][]float64
	step   int

	lr  float64
	rng *rand.Rand
}

// NewMLP creates a model with the default architecture for the given input
// width, initialized from rng. A nil rng gets a time-based seed.
func NewMLP(inputSize int, rng *rand.Rand) *MLP {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &MLP{
		sizes: []int{inputSize, DefaultHidden1, DefaultHidden2, 1},
		lr:    DefaultLearningRate,
		rng:   rng,
	}
	m.init()
	return m
}

// NewFactory returns a Factory producing stochastically initialized models,
// all drawing from one time-seeded source.
func NewFactory() Factory {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func(inputSize int) Regressor {
		return NewMLP(inputSize, rand.New(rand.NewSource(rng.Int63())))
	}
}

// NewSeededFactory returns a deterministic Factory for tests and replays.
func NewSeededFactory(seed int64) Factory {
	rng := rand.New(rand.NewSource(seed))
	return func(inputSize int) Regressor {
		return NewMLP(inputSize, rand.New(rand.NewSource(rng.Int63())))
	}
}

func (m *MLP) init() {
	layers := len(m.sizes) - 1
	m.weights = make([][][]float64, layers)
	m.biases = make([][]float64, layers)
	m.mW = make([][][]float64, layers)
	m.vW = make([][][]float64, layers)
	m.mB = make([][]float64, layers)
	m.vB = make([][]float64, layers)

	for l := 0; l < layers; l++ {
		in, out := m.sizes[l], m.sizes[l+1]
		// He-style scaling keeps activations in range for ReLU layers.
		scale := math.Sqrt(2.0 / float64(in))
		m.weights[l] = make([][]float64, in)
		m.mW[l] = make([][]float64, in)
		m.vW[l] = make([][]float64, in)
		for i := 0; i < in; i++ {
			m.weights[l][i] = make([]float64, out)
			m.mW[l][i] = make([]float64, out)
			m.vW[l][i] = make([]float64, out)
			for j := 0; j < out; j++ {
				m.weights[l][i][j] = m.rng.NormFloat64() * scale
			}
		}
		m.biases[l] = make([]float64, out)
		m.mB[l] = make([]float64, out)
		m.vB[l] = make([]float64, out)
	}
}

// forward runs all layers, returning pre-activation sums and activations
// per layer (activations[0] is the input).
func (m *MLP) forward(features []float64) (sums [][]float64, acts [][]float64) {
	layers := len(m.sizes) - 1
	acts = make([][]float64, layers+1)
	sums = make([][]float64, layers)
	acts[0] = features

	for l := 0; l < layers; l++ {
		out := m.sizes[l+1]
		sum := make([]float64, out)
		act := make([]float64, out)
		for j := 0; j < out; j++ {
			s := m.biases[l][j]
			for i, a := range acts[l] {
				s += a * m.weights[l][i][j]
			}
			sum[j] = s
			if l == layers-1 {
				act[j] = s // linear output
			} else {
				act[j] = math.Max(0, s)
			}
		}
		sums[l] = sum
		acts[l+1] = act
	}
	return sums, acts
}

// Predict returns the model output for one feature window.
func (m *MLP) Predict(features []float64) (float64, error) {
	if len(features) != m.sizes[0] {
		return 0, fmt.Errorf("%w: got %d features, model expects %d",
			ErrDimensionMismatch, len(features), m.sizes[0])
	}
	_, acts := m.forward(features)
	return acts[len(acts)-1][0], nil
}

// Fit trains on the pairs for a fixed epoch/batch budget. Pairs are
// shuffled each epoch; gradients are averaged per minibatch.
func (m *MLP) Fit(features [][]float64, labels []float64, epochs, batchSize int) error {
	if len(features) == 0 {
		return ErrNoTrainingData
	}
	if len(features) != len(labels) {
		return fmt.Errorf("%w: %d feature rows, %d labels",
			ErrDimensionMismatch, len(features), len(labels))
	}
	for _, row := range features {
		if len(row) != m.sizes[0] {
			return fmt.Errorf("%w: got %d features, model expects %d",
				ErrDimensionMismatch, len(row), m.sizes[0])
		}
	}
	if batchSize <= 0 {
		batchSize = len(features)
	}

	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		m.rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for start := 0; start < len(idx); start += batchSize {
			end := start + batchSize
			if end > len(idx) {
				end = len(idx)
			}
			m.fitBatch(features, labels, idx[start:end])
		}
	}
	return nil
}

// fitBatch accumulates MAE gradients over a minibatch and applies one Adam
// update.
func (m *MLP) fitBatch(features [][]float64, labels []float64, batch []int) {
	layers := len(m.sizes) - 1

	gradW := make([][][]float64, layers)
	gradB := make([][]float64, layers)
	for l := 0; l < layers; l++ {
		gradW[l] = make([][]float64, m.sizes[l])
		for i := range gradW[l] {
			gradW[l][i] = make([]float64, m.sizes[l+1])
		}
		gradB[l] = make([]float64, m.sizes[l+1])
	}

	for _, n := range batch {
		sums, acts := m.forward(features[n])
		pred := acts[layers][0]

		// d(MAE)/d(pred) is the sign of the residual.
		var delta []float64
		switch {
		case pred > labels[n]:
			delta = []float64{1}
		case pred < labels[n]:
			delta = []float64{-1}
		default:
			delta = []float64{0}
		}

		for l := layers - 1; l >= 0; l-- {
			for j := range delta {
				gradB[l][j] += delta[j]
				for i, a := range acts[l] {
					gradW[l][i][j] += delta[j] * a
				}
			}
			if l == 0 {
				break
			}
			prev := make([]float64, m.sizes[l])
			for i := 0; i < m.sizes[l]; i++ {
				var s float64
				for j := range delta {
					s += delta[j] * m.weights[l][i][j]
				}
				// ReLU gate on the hidden pre-activation.
				if sums[l-1][i] > 0 {
					prev[i] = s
				}
			}
			delta = prev
		}
	}

	scale := 1.0 / float64(len(batch))
	m.step++
	bc1 := 1 - math.Pow(adamBeta1, float64(m.step))
	bc2 := 1 - math.Pow(adamBeta2, float64(m.step))

	for l := 0; l < layers; l++ {
		for i := range m.weights[l] {
			for j := range m.weights[l][i] {
				g := gradW[l][i][j] * scale
				m.mW[l][i][j] = adamBeta1*m.mW[l][i][j] + (1-adamBeta1)*g
				m.vW[l][i][j] = adamBeta2*m.vW[l][i][j] + (1-adamBeta2)*g*g
				mHat := m.mW[l][i][j] / bc1
				vHat := m.vW[l][i][j] / bc2
				m.weights[l][i][j] -= m.lr * mHat / (math.Sqrt(vHat) + adamEpsilon)
			}
		}
		for j := range m.biases[l] {
			g := gradB[l][j] * scale
			m.mB[l][j] = adamBeta1*m.mB[l][j] + (1-adamBeta1)*g
			m.vB[l][j] = adamBeta2*m.vB[l][j] + (1-adamBeta2)*g*g
			mHat := m.mB[l][j] / bc1
			vHat := m.vB[l][j] / bc2
			m.biases[l][j] -= m.lr * mHat / (math.Sqrt(vHat) + adamEpsilon)
		}
	}
}

var _ Regressor = (*MLP)(nil)
