// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

// Package models implements Pathfinder's two route models on top of the
// estimators in internal/predict/learn.
//
// Ensemble pairs a random forest route-type classifier with a gradient
// boosting difficulty regressor trained over the same one-hot route table.
// Neural is a ReLU MLP scoring route quality from the five neural features.
//
// Both models keep their serving artifact behind an atomic.Pointer. Fit
// trains and persists a new artifact without touching the serving one and
// returns it staged; Commit swaps the pointer, so a concurrent Predict sees
// either the old artifact or the new one in full.
//
// # Files
//
// Artifacts live in one directory, written through internal/predict/storage:
//
//	pathfinder_model.gob.gz        ensemble estimators, scaler and schema
//	pathfinder_ann.gob.gz          neural regressor and scaler
//	pathfinder_ann_metadata.json   neural metadata sidecar
package models
