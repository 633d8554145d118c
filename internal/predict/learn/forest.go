// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package learn

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ForestConfig configures a RandomForestClassifier.
type ForestConfig struct {
	// NEstimators is the number of trees.
	// Default: 100
	NEstimators int

	// MaxDepth limits each tree; 0 means unlimited.
	// Default: 10
	MaxDepth int

	// MinSamplesSplit is the minimum node size considered for a split.
	// Default: 5
	MinSamplesSplit int

	// Seed makes bootstrap and feature sampling reproducible.
	// Default: 42
	Seed uint64
}

// DefaultForestConfig returns the forest hyperparameters Pathfinder ships with.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{NEstimators: 100, MaxDepth: 10, MinSamplesSplit: 5, Seed: 42}
}

// RandomForestClassifier is a bagged ensemble of gini trees. Classes are
// kept in sorted order and probabilities are reported in that order.
type RandomForestClassifier struct {
	Config  ForestConfig
	Classes []string
	Trees   []*DecisionTree
}

// NewRandomForestClassifier returns an unfitted forest.
func NewRandomForestClassifier(cfg ForestConfig) *RandomForestClassifier {
	return &RandomForestClassifier{Config: cfg}
}

// Fitted reports whether the forest has trees.
func (f *RandomForestClassifier) Fitted() bool {
	return f != nil && len(f.Trees) > 0
}

// Fit trains the forest on x with string labels y.
func (f *RandomForestClassifier) Fit(x *mat.Dense, y []string) error {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return ErrEmptyInput
	}
	if len(y) != rows {
		return fmt.Errorf("%w: %d rows, %d labels", ErrShape, rows, len(y))
	}
	if f.Config.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", f.Config.NEstimators)
	}

	classes := uniqueSorted(y)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := make([]int, rows)
	for i, label := range y {
		encoded[i] = index[label]
	}

	maxFeatures := int(math.Max(1, math.Floor(math.Sqrt(float64(cols)))))
	cfg := TreeConfig{
		MaxDepth:        f.Config.MaxDepth,
		MinSamplesSplit: f.Config.MinSamplesSplit,
		MaxFeatures:     maxFeatures,
	}

	rng := rand.New(rand.NewPCG(f.Config.Seed, f.Config.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible sampling, not security
	trees := make([]*DecisionTree, 0, f.Config.NEstimators)
	sample := make([]int, rows)
	for t := 0; t < f.Config.NEstimators; t++ {
		for i := range sample {
			sample[i] = rng.IntN(rows)
		}
		tree, err := FitClassificationTree(x, encoded, len(classes), sample, cfg, rng)
		if err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
		trees = append(trees, tree)
	}

	f.Classes = classes
	f.Trees = trees
	return nil
}

// PredictProba averages class probabilities across trees.
func (f *RandomForestClassifier) PredictProba(row []float64) ([]float64, error) {
	if !f.Fitted() {
		return nil, ErrNotFitted
	}
	proba := make([]float64, len(f.Classes))
	for _, t := range f.Trees {
		leaf, err := t.Leaf(row)
		if err != nil {
			return nil, err
		}
		floats.Add(proba, leaf)
	}
	floats.Scale(1/float64(len(f.Trees)), proba)
	return proba, nil
}

// Predict returns the most probable class and its probability.
func (f *RandomForestClassifier) Predict(row []float64) (string, float64, error) {
	proba, err := f.PredictProba(row)
	if err != nil {
		return "", 0, err
	}
	best := floats.MaxIdx(proba)
	return f.Classes[best], proba[best], nil
}

// Score returns accuracy on x, y.
func (f *RandomForestClassifier) Score(x *mat.Dense, y []string) (float64, error) {
	rows, _ := x.Dims()
	pred := make([]string, rows)
	for i := 0; i < rows; i++ {
		label, _, err := f.Predict(x.RawRowView(i))
		if err != nil {
			return 0, err
		}
		pred[i] = label
	}
	return Accuracy(y, pred), nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
