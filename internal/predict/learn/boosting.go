// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package learn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BoostingConfig configures a GradientBoostingRegressor.
type BoostingConfig struct {
	// NEstimators is the number of boosting stages.
	// Default: 100
	NEstimators int

	// LearningRate shrinks each stage's contribution.
	// Default: 0.1
	LearningRate float64

	// MaxDepth limits each stage's tree.
	// Default: 5
	MaxDepth int

	// MinSamplesSplit is the minimum node size considered for a split.
	// Default: 2
	MinSamplesSplit int

	// Seed is kept for reproducibility of any future subsampling.
	// Default: 42
	Seed uint64
}

// DefaultBoostingConfig returns the boosting hyperparameters Pathfinder ships with.
func DefaultBoostingConfig() BoostingConfig {
	return BoostingConfig{NEstimators: 100, LearningRate: 0.1, MaxDepth: 5, MinSamplesSplit: 2, Seed: 42}
}

// GradientBoostingRegressor fits shallow regression trees to the residuals
// of a squared-error loss, starting from the target mean.
type GradientBoostingRegressor struct {
	Config    BoostingConfig
	Init      float64
	Trees     []*DecisionTree
	NFeatures int
}

// NewGradientBoostingRegressor returns an unfitted regressor.
func NewGradientBoostingRegressor(cfg BoostingConfig) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{Config: cfg}
}

// Fitted reports whether the regressor has been fitted.
func (g *GradientBoostingRegressor) Fitted() bool {
	return g != nil && g.NFeatures > 0
}

// Fit trains the regressor.
func (g *GradientBoostingRegressor) Fit(x *mat.Dense, y []float64) error {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return ErrEmptyInput
	}
	if len(y) != rows {
		return fmt.Errorf("%w: %d rows, %d targets", ErrShape, rows, len(y))
	}
	if g.Config.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", g.Config.NEstimators)
	}

	base := stat.Mean(y, nil)
	pred := make([]float64, rows)
	for i := range pred {
		pred[i] = base
	}

	all := make([]int, rows)
	for i := range all {
		all[i] = i
	}
	cfg := TreeConfig{MaxDepth: g.Config.MaxDepth, MinSamplesSplit: g.Config.MinSamplesSplit}
	rng := rand.New(rand.NewPCG(g.Config.Seed, g.Config.Seed)) //nolint:gosec // reproducible, not security

	residual := make([]float64, rows)
	trees := make([]*DecisionTree, 0, g.Config.NEstimators)
	for stage := 0; stage < g.Config.NEstimators; stage++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		tree, err := FitRegressionTree(x, residual, all, cfg, rng)
		if err != nil {
			return fmt.Errorf("stage %d: %w", stage, err)
		}
		for i := 0; i < rows; i++ {
			leaf, err := tree.Leaf(x.RawRowView(i))
			if err != nil {
				return fmt.Errorf("stage %d: %w", stage, err)
			}
			pred[i] += g.Config.LearningRate * leaf[0]
		}
		trees = append(trees, tree)
	}

	g.Init = base
	g.Trees = trees
	g.NFeatures = cols
	return nil
}

// Predict returns the regression output for one row.
func (g *GradientBoostingRegressor) Predict(row []float64) (float64, error) {
	if !g.Fitted() {
		return 0, ErrNotFitted
	}
	if len(row) != g.NFeatures {
		return 0, fmt.Errorf("%w: regressor expects %d features, got %d", ErrShape, g.NFeatures, len(row))
	}
	out := g.Init
	for _, t := range g.Trees {
		leaf, err := t.Leaf(row)
		if err != nil {
			return 0, err
		}
		out += g.Config.LearningRate * leaf[0]
	}
	return out, nil
}

// Score returns R² on x, y.
func (g *GradientBoostingRegressor) Score(x *mat.Dense, y []float64) (float64, error) {
	rows, _ := x.Dims()
	pred := make([]float64, rows)
	for i := 0; i < rows; i++ {
		p, err := g.Predict(x.RawRowView(i))
		if err != nil {
			return 0, err
		}
		pred[i] = p
	}
	return R2(y, pred), nil
}
