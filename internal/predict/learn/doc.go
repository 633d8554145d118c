// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

// Package learn implements the small set of estimators Pathfinder trains:
//
//   - StandardScaler: z-score standardisation of numeric columns
//   - DecisionTree: CART trees with gini (classification) or squared error
//     (regression) splits
//   - RandomForestClassifier: bagged classification trees with sqrt feature
//     sampling
//   - GradientBoostingRegressor: least-squares boosting of shallow trees
//   - MLPRegressor: a ReLU multi-layer perceptron trained with Adam, L2
//     regularisation and optional early stopping
//
// All estimators are deterministic for a fixed seed. Fitted state lives in
// exported fields so the models can be persisted with encoding/gob; no
// estimator keeps unexported state that would be lost across a save/load
// round trip.
//
// Matrix work uses gonum (mat, stat, floats). The estimators are not safe
// for concurrent Fit calls; concurrent Predict calls on a fitted estimator
// are safe because prediction never mutates it.
package learn

import "errors"

var (
	// ErrNotFitted is returned when predicting with an estimator that has
	// not been fitted.
	ErrNotFitted = errors.New("estimator not fitted")

	// ErrEmptyInput is returned when fitting on zero rows or columns.
	ErrEmptyInput = errors.New("empty input")

	// ErrShape is returned when input dimensions disagree with each other
	// or with the fitted model.
	ErrShape = errors.New("shape mismatch")
)
