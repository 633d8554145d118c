// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package models

import (
	"github.com/tomtom215/pathfinder/internal/config"
	"github.com/tomtom215/pathfinder/internal/predict/learn"
)

// EnsembleConfigFromSettings converts the ensemble section of the
// application configuration.
func EnsembleConfigFromSettings(s *config.EnsembleConfig) EnsembleConfig {
	return EnsembleConfig{
		Forest: learn.ForestConfig{
			NEstimators:     s.Trees,
			MaxDepth:        s.MaxDepth,
			MinSamplesSplit: s.MinSamplesSplit,
			Seed:            s.Seed,
		},
		Boosting: learn.BoostingConfig{
			NEstimators:     s.BoostStages,
			LearningRate:    s.BoostLearningRate,
			MaxDepth:        s.BoostMaxDepth,
			MinSamplesSplit: learn.DefaultBoostingConfig().MinSamplesSplit,
			Seed:            s.Seed,
		},
	}
}

// NeuralConfigFromSettings converts the neural section of the application
// configuration. The convergence tolerance keeps its default.
func NeuralConfigFromSettings(s *config.NeuralConfig) NeuralConfig {
	mlp := learn.DefaultMLPConfig()
	mlp.HiddenLayers = append([]int(nil), s.HiddenLayers...)
	mlp.LearningRate = s.LearningRate
	mlp.Alpha = s.Alpha
	mlp.BatchSize = s.BatchSize
	mlp.MaxIter = s.MaxIter
	mlp.EarlyStopping = s.EarlyStopping
	mlp.ValidationFraction = s.ValidationFraction
	mlp.NIterNoChange = s.NIterNoChange
	mlp.Seed = s.Seed
	return NeuralConfig{MLP: mlp}
}
