// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

/*
Package predict coordinates Pathfinder's two route models and serves their
combined predictions.

# Overview

Two models with independent training lifecycles score a route:

  - the ensemble (internal/predict/models.Ensemble) classifies the route
    type and regresses a difficulty score from route attributes
  - the neural regressor (internal/predict/models.Neural) scores route
    quality from route attributes combined with the caller's preferences

The Coordinator owns both, merges their outputs into one PredictionResult,
caches results per (route, preferences) and retrains both models in place.

# Request Path

GetRoutePredictions never returns an error. Any failure on the way (route
store error, unknown route, missing route attribute, model not ready,
malformed preference, even a panic inside a model) produces the fallback
result:

	route_type=mixed difficulty=0.5 quality=0.5 confidence=0 is_fallback=true

Callers must not rank on results with IsFallback set.

# Training Path

UpdateModels validates the payload, trains the ensemble and then the neural
regressor outside of any request lock, and commits the staged artifacts,
bumps the version and purges the cache under the coordinator write lock. A
request running concurrently sees either the old models with the old cache
generation or the new models with an empty cache, never a mix.

# Thread Safety

Coordinator, PredictionCache and FeatureBuilder are safe for concurrent use.
*/
package predict
