// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/goccy/go-json"
)

// EnsembleLabels are the per-route targets of the ensemble.
type EnsembleLabels struct {
	RouteType  []string  `json:"route_type"`
	Difficulty []float64 `json:"difficulty"`
}

// TrainingData is a complete retraining payload. Ensemble rows are route
// snapshots; neural rows are already in NeuralFeatureNames order.
//
// On disk it is JSON:
//
//	{
//	  "ensemble_features": [{"distance": 5, "elevation_gain": 100, "has_sidewalks": true,
//	                         "is_lit": true, "surface_type": "asphalt"}],
//	  "ensemble_labels": {"route_type": ["road"], "difficulty": [0.4]},
//	  "neural_features": [[5, 100, 0, 1, 1]],
//	  "neural_labels": [0.8]
//	}
type TrainingData struct {
	EnsembleFeatures []RouteSnapshot `json:"ensemble_features"`
	EnsembleLabels   *EnsembleLabels `json:"ensemble_labels"`
	NeuralFeatures   [][]float64     `json:"neural_features"`
	NeuralLabels     []float64       `json:"neural_labels"`
}

// Validate checks that both model sections are present and consistently
// shaped. It does not inspect individual routes; the ensemble does that
// while fitting.
func (d *TrainingData) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: no payload", ErrTrainingData)
	}
	var missing []string
	if len(d.EnsembleFeatures) == 0 {
		missing = append(missing, "ensemble_features")
	}
	if d.EnsembleLabels == nil {
		missing = append(missing, "ensemble_labels")
	}
	if len(d.NeuralFeatures) == 0 {
		missing = append(missing, "neural_features")
	}
	if len(d.NeuralLabels) == 0 {
		missing = append(missing, "neural_labels")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrTrainingData, missing)
	}

	n := len(d.EnsembleFeatures)
	if len(d.EnsembleLabels.RouteType) != n || len(d.EnsembleLabels.Difficulty) != n {
		return fmt.Errorf("%w: %d ensemble rows but %d route types and %d difficulties",
			ErrTrainingData, n, len(d.EnsembleLabels.RouteType), len(d.EnsembleLabels.Difficulty))
	}
	if len(d.NeuralFeatures) != len(d.NeuralLabels) {
		return fmt.Errorf("%w: %d neural rows but %d labels", ErrTrainingData, len(d.NeuralFeatures), len(d.NeuralLabels))
	}
	for i, row := range d.NeuralFeatures {
		if len(row) != len(NeuralFeatureNames) {
			return fmt.Errorf("%w: neural row %d has %d values, want %d", ErrTrainingData, i, len(row), len(NeuralFeatureNames))
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: neural row %d is not finite", ErrTrainingData, i)
			}
		}
	}
	return nil
}

// LoadTrainingData reads and validates a JSON training payload.
func LoadTrainingData(path string) (*TrainingData, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}
	var data TrainingData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrTrainingData, path, err)
	}
	for i := range data.EnsembleFeatures {
		data.EnsembleFeatures[i].SurfaceType = NormalizeSurface(string(data.EnsembleFeatures[i].SurfaceType))
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// Labels used by SyntheticTrainingData.
var syntheticRouteTypes = []string{"easy", "moderate", "challenging"}

// SyntheticTrainingData generates n random but well-formed samples for
// bootstrapping models before real feedback exists. The same seed yields
// the same payload.
func SyntheticTrainingData(n int, seed uint64) *TrainingData {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data, not security
	surfaces := []SurfaceType{SurfaceAsphalt, SurfaceDirt, SurfaceGrass}

	data := &TrainingData{
		EnsembleFeatures: make([]RouteSnapshot, n),
		EnsembleLabels: &EnsembleLabels{
			RouteType:  make([]string, n),
			Difficulty: make([]float64, n),
		},
		NeuralFeatures: make([][]float64, n),
		NeuralLabels:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		distance := uniform(rng, 1, 15)
		elevation := uniform(rng, 0, 500)
		sidewalks := rng.IntN(2) == 1
		lit := rng.IntN(2) == 1

		data.EnsembleFeatures[i] = RouteSnapshot{
			ID:            int64(i + 1),
			Distance:      &distance,
			ElevationGain: &elevation,
			HasSidewalks:  &sidewalks,
			IsLit:         &lit,
			SurfaceType:   surfaces[rng.IntN(len(surfaces))],
		}
		data.EnsembleLabels.RouteType[i] = syntheticRouteTypes[rng.IntN(len(syntheticRouteTypes))]
		data.EnsembleLabels.Difficulty[i] = clip01(0.5 + 0.2*rng.NormFloat64())

		data.NeuralFeatures[i] = []float64{
			distance,
			elevation,
			rng.Float64(),          // traffic_level
			rng.Float64(),          // surface_quality
			uniform(rng, 0.5, 1.0), // safety_score
		}
		data.NeuralLabels[i] = clip01(0.7 + 0.15*rng.NormFloat64())
	}
	return data
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
