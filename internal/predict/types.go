// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"context"
	"strings"
	"time"
)

// SurfaceType is a route's surface.
type SurfaceType string

// Known surfaces. Anything else normalizes to SurfaceUnknown.
const (
	SurfaceAsphalt SurfaceType = "asphalt"
	SurfaceDirt    SurfaceType = "dirt"
	SurfaceGrass   SurfaceType = "grass"
	SurfaceUnknown SurfaceType = "unknown"
)

// NormalizeSurface maps free text to a SurfaceType. Empty input stays empty
// so that a missing surface is still reported as missing.
func NormalizeSurface(s string) SurfaceType {
	switch SurfaceType(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ""
	case SurfaceAsphalt:
		return SurfaceAsphalt
	case SurfaceDirt:
		return SurfaceDirt
	case SurfaceGrass:
		return SurfaceGrass
	default:
		return SurfaceUnknown
	}
}

// Route types produced by an untrained ensemble and by the fallback.
// A trained classifier returns whatever label set it was trained on.
const (
	RouteTypeRoad  = "road"
	RouteTypeTrail = "trail"
	RouteTypeMixed = "mixed"
)

// RouteSnapshot is a read-only view of a route as supplied by the route
// store. Pointer fields distinguish "absent" from a zero value.
type RouteSnapshot struct {
	ID            int64       `json:"id"`
	Distance      *float64    `json:"distance" validate:"required,gt=0"`
	ElevationGain *float64    `json:"elevation_gain,omitempty" validate:"omitempty,gte=0"`
	HasSidewalks  *bool       `json:"has_sidewalks" validate:"required"`
	IsLit         *bool       `json:"is_lit" validate:"required"`
	SurfaceType   SurfaceType `json:"surface_type" validate:"required"`
}

// Preferences are per-request user preferences. Known keys are
// traffic_preference, surface_preference, require_lighting and
// require_sidewalks; callers may add others, which only affect the cache
// key. Values must be scalars (string, bool or number).
type Preferences map[string]any

// Preference keys read by the feature builder.
const (
	PrefTraffic          = "traffic_preference"
	PrefSurface          = "surface_preference"
	PrefRequireLighting  = "require_lighting"
	PrefRequireSidewalks = "require_sidewalks"
)

// FeatureVector is one model input row with its column names.
type FeatureVector struct {
	Names  []string
	Values []float64
}

// Value returns the named column, or 0 and false.
func (f FeatureVector) Value(name string) (float64, bool) {
	for i, n := range f.Names {
		if n == name {
			return f.Values[i], true
		}
	}
	return 0, false
}

// PredictionResult is the merged output of both models for one route.
type PredictionResult struct {
	RouteType       string    `json:"route_type"`
	DifficultyScore float64   `json:"difficulty_score"`
	QualityScore    float64   `json:"quality_score"`
	ConfidenceScore float64   `json:"confidence_score"`
	ModelVersion    string    `json:"model_version"`
	Timestamp       time.Time `json:"timestamp"`
	IsFallback      bool      `json:"is_fallback"`
}

// Fallback scores returned whenever a real prediction cannot be made.
const (
	FallbackRouteType  = RouteTypeMixed
	FallbackDifficulty = 0.5
	FallbackQuality    = 0.5
	FallbackConfidence = 0.0
)

// EnsemblePrediction is the ensemble's share of a PredictionResult.
type EnsemblePrediction struct {
	RouteType       string
	DifficultyScore float64
	ConfidenceScore float64

	// Degraded is set when the serving artifact failed its self-test.
	Degraded bool
}

// TrainingMetrics summarises one neural training run.
type TrainingMetrics struct {
	ExplainedVariance float64 `json:"explained_variance"`
	R2Score           float64 `json:"r2_score"`
	Loss              float64 `json:"loss"`
	NIter             int     `json:"n_iter"`
}

// ModelState is a model's lifecycle state.
type ModelState int

// Model states, in metric order.
const (
	StateUninitialized ModelState = iota
	StateFresh
	StateLoaded
	StateReady
	StateDegraded
)

func (s ModelState) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateLoaded:
		return "loaded"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "uninitialized"
	}
}

// Serving reports whether a model in this state can answer Predict.
func (s ModelState) Serving() bool {
	return s != StateUninitialized
}

// MarshalText encodes the state by name.
func (s ModelState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ModelInfo describes a model for status reporting.
type ModelInfo struct {
	Name             string     `json:"name"`
	Version          string     `json:"version"`
	State            ModelState `json:"state"`
	Initialized      bool       `json:"initialized"`
	LastTrainingDate *time.Time `json:"last_training_date,omitempty"`
	Estimators       []string   `json:"estimators"`
	RequiredFeatures []string   `json:"required_features"`
}

// Staged is a trained artifact that has been persisted but is not yet
// serving. Commit makes it the model's serving artifact.
type Staged interface {
	Commit()
	Version() string
}

// RouteStore resolves routes. GetRoute returns nil, nil for an unknown id.
type RouteStore interface {
	GetRoute(ctx context.Context, id int64) (*RouteSnapshot, error)
}

// EnsembleModel is the route-type classifier and difficulty regressor pair.
type EnsembleModel interface {
	Init(ctx context.Context) error
	Predict(fv FeatureVector) (EnsemblePrediction, error)
	Fit(ctx context.Context, routes []RouteSnapshot, labels *EnsembleLabels, split float64) (Staged, error)

	// Columns returns the trained feature schema, or nil before training.
	Columns() []string
	Version() string
	State() ModelState
	Info() ModelInfo
}

// NeuralModel is the route quality regressor.
type NeuralModel interface {
	Load(ctx context.Context) error
	Predict(ctx context.Context, rows [][]float64) ([]float64, error)
	Fit(ctx context.Context, x [][]float64, y []float64) (Staged, TrainingMetrics, error)
	State() ModelState
	Info() ModelInfo
}
