// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package models

import (
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tomtom215/pathfinder/internal/metrics"
	"github.com/tomtom215/pathfinder/internal/predict"
)

// Artifact file names.
const (
	EnsembleFile       = "pathfinder_model.gob.gz"
	NeuralFile         = "pathfinder_ann.gob.gz"
	NeuralMetadataFile = "pathfinder_ann_metadata.json"
)

// initialVersion is the version of a model that has never been trained.
const initialVersion = "1.0.0"

// lifecycle tracks a model's state and mirrors it to the state gauge.
type lifecycle struct {
	name  string
	state atomic.Int32
}

func (l *lifecycle) State() predict.ModelState {
	return predict.ModelState(l.state.Load())
}

func (l *lifecycle) set(s predict.ModelState) {
	l.state.Store(int32(s))
	metrics.ModelState.WithLabelValues(l.name).Set(float64(s))
}

// trainedVersion stamps a freshly trained artifact.
func trainedVersion(t time.Time) string {
	return "1.1." + strconv.FormatInt(t.Unix(), 10)
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
