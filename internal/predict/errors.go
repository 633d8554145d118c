// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"errors"
	"strings"
)

var (
	// ErrMissingFeature indicates a required route attribute is absent.
	ErrMissingFeature = errors.New("missing required feature")

	// ErrInvalidFeature indicates a route attribute is present but out of range.
	ErrInvalidFeature = errors.New("invalid feature value")

	// ErrRouteNotFound indicates the route store has no route with the id.
	ErrRouteNotFound = errors.New("route not found")

	// ErrModelNotReady indicates a prediction was requested before the
	// model was initialized or trained.
	ErrModelNotReady = errors.New("model not ready")

	// ErrPersistence indicates an artifact could not be saved or loaded.
	ErrPersistence = errors.New("model persistence failed")

	// ErrValidation indicates a loaded artifact failed its self-test.
	ErrValidation = errors.New("model validation failed")

	// ErrTrainingData indicates a malformed or incomplete training payload.
	ErrTrainingData = errors.New("invalid training data")

	// ErrInvalidPreference indicates a preference value that cannot be
	// part of a cache key.
	ErrInvalidPreference = errors.New("invalid preference value")
)

// MissingFeatureError names the required attributes a route lacks.
type MissingFeatureError struct {
	Fields []string
}

func (e *MissingFeatureError) Error() string {
	return ErrMissingFeature.Error() + ": " + strings.Join(e.Fields, ", ")
}

// Unwrap lets errors.Is match ErrMissingFeature.
func (e *MissingFeatureError) Unwrap() error {
	return ErrMissingFeature
}
