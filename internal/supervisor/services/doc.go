// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

// Package services adapts Pathfinder components to suture.Service.
//
//   - TrainingService: periodic model retraining from a payload file
//   - HTTPServerService: the ops HTTP server (health, metrics and predictions)
//
// Every service returns ctx.Err() when its context is cancelled and
// implements fmt.Stringer so suture's events name it.
package services
