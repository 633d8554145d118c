// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package learn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Adam moment decay rates and numerical floor.
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
)

// MLPConfig configures an MLPRegressor.
type MLPConfig struct {
	// HiddenLayers lists hidden layer widths.
	// Default: [128, 64, 32]
	HiddenLayers []int

	// LearningRate is Adam's initial step size.
	// Default: 0.001
	LearningRate float64

	// Alpha is the L2 penalty.
	// Default: 0.0001
	Alpha float64

	// BatchSize is the mini-batch size, capped at the training set size.
	// Default: 32
	BatchSize int

	// MaxIter is the maximum number of epochs.
	// Default: 1000
	MaxIter int

	// Tol is the minimum improvement that resets the patience counter.
	// Default: 0.0001
	Tol float64

	// EarlyStopping holds out ValidationFraction of the rows and stops once
	// the validation R² stops improving. The best weights are restored.
	// Default: true
	EarlyStopping bool

	// ValidationFraction is the held-out share used for early stopping.
	// Default: 0.1
	ValidationFraction float64

	// NIterNoChange is the patience, in epochs.
	// Default: 10
	NIterNoChange int

	// Seed drives weight init, shuffling and the validation split.
	// Default: 42
	Seed uint64
}

// DefaultMLPConfig returns the network hyperparameters Pathfinder ships with.
func DefaultMLPConfig() MLPConfig {
	return MLPConfig{
		HiddenLayers:       []int{128, 64, 32},
		LearningRate:       0.001,
		Alpha:              0.0001,
		BatchSize:          32,
		MaxIter:            1000,
		Tol:                1e-4,
		EarlyStopping:      true,
		ValidationFraction: 0.1,
		NIterNoChange:      10,
		Seed:               42,
	}
}

// Layer is one dense layer. W is In x Out, row-major.
type Layer struct {
	In  int
	Out int
	W   []float64
	B   []float64
}

func (l *Layer) weights() *mat.Dense {
	return mat.NewDense(l.In, l.Out, l.W)
}

// MLPRegressor is a ReLU network with a single linear output unit.
type MLPRegressor struct {
	Config MLPConfig
	Layers []Layer

	// Loss is the final training loss (half mean squared error plus the
	// L2 term).
	Loss float64

	// NIter is the number of epochs run.
	NIter int

	// BestValidationScore is the best validation R² seen when early
	// stopping is enabled.
	BestValidationScore float64
}

// NewMLPRegressor returns an unfitted network.
func NewMLPRegressor(cfg MLPConfig) *MLPRegressor {
	return &MLPRegressor{Config: cfg}
}

// Fitted reports whether the network has weights.
func (m *MLPRegressor) Fitted() bool {
	return m != nil && len(m.Layers) > 0
}

// Fit trains the network on x, y from a fresh initialisation.
//
//nolint:gocyclo // epoch loop with two stopping rules
func (m *MLPRegressor) Fit(x *mat.Dense, y []float64) error {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return ErrEmptyInput
	}
	if len(y) != rows {
		return fmt.Errorf("%w: %d rows, %d targets", ErrShape, rows, len(y))
	}
	cfg := m.Config
	if cfg.MaxIter <= 0 {
		return fmt.Errorf("max_iter must be positive, got %d", cfg.MaxIter)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)) //nolint:gosec // reproducible training, not security
	trainIdx, valIdx := m.split(rows, rng)
	xTrain, yTrain := subset(x, y, trainIdx)
	var xVal *mat.Dense
	var yVal []float64
	if len(valIdx) > 0 {
		xVal, yVal = subset(x, y, valIdx)
	}

	layers := initLayers(cols, cfg.HiddenLayers, rng)
	opt := newAdam(layers, cfg.LearningRate)

	batch := cfg.BatchSize
	if batch <= 0 || batch > len(trainIdx) {
		batch = len(trainIdx)
	}

	var (
		best      []Layer
		bestScore = math.Inf(-1)
		bestLoss  = math.Inf(1)
		stale     int
		loss      float64
		epoch     int
	)
	order := make([]int, len(trainIdx))
	for i := range order {
		order[i] = i
	}

	for epoch = 1; epoch <= cfg.MaxIter; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		for start := 0; start < len(order); start += batch {
			end := min(start+batch, len(order))
			xb, yb := subset(xTrain, yTrain, order[start:end])
			total += step(layers, opt, xb, yb, cfg.Alpha) * float64(end-start)
		}
		loss = total / float64(len(order))

		if xVal != nil {
			score := R2(yVal, forward(layers, xVal))
			if score < bestScore+cfg.Tol {
				stale++
			} else {
				stale = 0
			}
			if score > bestScore {
				bestScore = score
				best = cloneLayers(layers)
			}
		} else {
			if loss > bestLoss-cfg.Tol {
				stale++
			} else {
				stale = 0
			}
			if loss < bestLoss {
				bestLoss = loss
			}
		}
		if cfg.NIterNoChange > 0 && stale > cfg.NIterNoChange {
			break
		}
	}
	if epoch > cfg.MaxIter {
		epoch = cfg.MaxIter
	}

	if best != nil {
		layers = best
		m.BestValidationScore = bestScore
	}
	m.Layers = layers
	m.Loss = loss
	m.NIter = epoch
	return nil
}

// Predict returns one output per row of x.
func (m *MLPRegressor) Predict(x *mat.Dense) ([]float64, error) {
	if !m.Fitted() {
		return nil, ErrNotFitted
	}
	if _, cols := x.Dims(); cols != m.Layers[0].In {
		return nil, fmt.Errorf("%w: network expects %d features, got %d", ErrShape, m.Layers[0].In, cols)
	}
	return forward(m.Layers, x), nil
}

// split returns shuffled train and validation row indices.
func (m *MLPRegressor) split(rows int, rng *rand.Rand) (train, val []int) {
	perm := rng.Perm(rows)
	if !m.Config.EarlyStopping {
		return perm, nil
	}
	nVal := int(math.Ceil(m.Config.ValidationFraction * float64(rows)))
	if nVal < 1 || rows-nVal < 1 {
		return perm, nil
	}
	return perm[nVal:], perm[:nVal]
}

func initLayers(in int, hidden []int, rng *rand.Rand) []Layer {
	sizes := append(append([]int{in}, hidden...), 1)
	layers := make([]Layer, len(sizes)-1)
	for l := range layers {
		fanIn, fanOut := sizes[l], sizes[l+1]
		w := make([]float64, fanIn*fanOut)
		std := math.Sqrt(2 / float64(fanIn))
		for i := range w {
			w[i] = rng.NormFloat64() * std
		}
		layers[l] = Layer{In: fanIn, Out: fanOut, W: w, B: make([]float64, fanOut)}
	}
	return layers
}

// activate computes every layer's activation for x. The first entry is x.
func activate(layers []Layer, x mat.Matrix) []*mat.Dense {
	acts := make([]*mat.Dense, len(layers)+1)
	acts[0] = mat.DenseCopyOf(x)
	last := len(layers) - 1
	for l := range layers {
		layer := &layers[l]
		var z mat.Dense
		z.Mul(acts[l], layer.weights())
		z.Apply(func(_, j int, v float64) float64 {
			v += layer.B[j]
			if l < last && v < 0 {
				return 0
			}
			return v
		}, &z)
		acts[l+1] = &z
	}
	return acts
}

func forward(layers []Layer, x mat.Matrix) []float64 {
	acts := activate(layers, x)
	return mat.Col(nil, 0, acts[len(acts)-1])
}

// step runs one forward/backward pass and an Adam update, returning the
// batch loss.
func step(layers []Layer, opt *adam, x *mat.Dense, y []float64, alpha float64) float64 {
	n := float64(len(y))
	acts := activate(layers, x)
	out := acts[len(acts)-1]

	delta := mat.NewDense(len(y), 1, nil)
	var sq float64
	for i, target := range y {
		diff := out.At(i, 0) - target
		sq += diff * diff
		delta.Set(i, 0, diff/n)
	}
	var l2 float64
	for l := range layers {
		l2 += floats.Dot(layers[l].W, layers[l].W)
	}
	loss := 0.5*sq/n + 0.5*alpha*l2/n

	gradW := make([][]float64, len(layers))
	gradB := make([][]float64, len(layers))
	for l := len(layers) - 1; l >= 0; l-- {
		layer := &layers[l]
		w := layer.weights()

		gw := mat.NewDense(layer.In, layer.Out, nil)
		gw.Mul(acts[l].T(), delta)
		raw := gw.RawMatrix().Data
		floats.AddScaled(raw, alpha/n, layer.W)
		gradW[l] = raw

		gb := make([]float64, layer.Out)
		rowsD, _ := delta.Dims()
		for i := 0; i < rowsD; i++ {
			floats.Add(gb, delta.RawRowView(i))
		}
		gradB[l] = gb

		if l > 0 {
			var prev mat.Dense
			prev.Mul(delta, w.T())
			a := acts[l]
			prev.Apply(func(i, j int, v float64) float64 {
				if a.At(i, j) <= 0 {
					return 0
				}
				return v
			}, &prev)
			delta = &prev
		}
	}

	opt.update(layers, gradW, gradB)
	return loss
}

// adam holds first and second moment estimates for every parameter.
type adam struct {
	lr     float64
	t      int
	mW, vW [][]float64
	mB, vB [][]float64
}

func newAdam(layers []Layer, lr float64) *adam {
	a := &adam{lr: lr}
	for _, l := range layers {
		a.mW = append(a.mW, make([]float64, len(l.W)))
		a.vW = append(a.vW, make([]float64, len(l.W)))
		a.mB = append(a.mB, make([]float64, len(l.B)))
		a.vB = append(a.vB, make([]float64, len(l.B)))
	}
	return a
}

func (a *adam) update(layers []Layer, gradW, gradB [][]float64) {
	a.t++
	lrT := a.lr * math.Sqrt(1-math.Pow(adamBeta2, float64(a.t))) / (1 - math.Pow(adamBeta1, float64(a.t)))
	for l := range layers {
		adamStep(layers[l].W, gradW[l], a.mW[l], a.vW[l], lrT)
		adamStep(layers[l].B, gradB[l], a.mB[l], a.vB[l], lrT)
	}
}

func adamStep(params, grads, m, v []float64, lr float64) {
	for i, g := range grads {
		m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
		v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
		params[i] -= lr * m[i] / (math.Sqrt(v[i]) + adamEpsilon)
	}
}

func cloneLayers(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	for i, l := range layers {
		out[i] = Layer{
			In:  l.In,
			Out: l.Out,
			W:   append([]float64(nil), l.W...),
			B:   append([]float64(nil), l.B...),
		}
	}
	return out
}

// subset copies the given rows of x and y.
func subset(x *mat.Dense, y []float64, idx []int) (*mat.Dense, []float64) {
	_, cols := x.Dims()
	xs := mat.NewDense(len(idx), cols, nil)
	ys := make([]float64, len(idx))
	for i, r := range idx {
		xs.SetRow(i, x.RawRowView(r))
		ys[i] = y[r]
	}
	return xs, ys
}
