// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tomtom215/pathfinder/internal/validation"
)

// Ensemble base columns, in schema order. One-hot surface columns follow.
const (
	ColDistance      = "distance"
	ColElevationGain = "elevation_gain"
	ColHasSidewalks  = "has_sidewalks"
	ColIsLit         = "is_lit"

	surfaceColumnPrefix = "surface_"
)

// RequiredFeatures are the route attributes the ensemble reads.
var RequiredFeatures = []string{ColDistance, ColElevationGain, ColHasSidewalks, ColIsLit, "surface_type"}

// NeuralFeatureNames is the neural model's fixed input order.
var NeuralFeatureNames = []string{"distance", "elevation_gain", "traffic_level", "surface_quality", "safety_score"}

// Neural feature defaults.
const (
	DefaultTrafficLevel   = 0.5
	DefaultSurfaceQuality = 0.7
	BaseSafetyScore       = 0.8
	SafetyStep            = 0.1
)

var baseEnsembleColumns = []string{ColDistance, ColElevationGain, ColHasSidewalks, ColIsLit}

// SurfaceColumn returns the one-hot column name for a surface.
func SurfaceColumn(s SurfaceType) string {
	return surfaceColumnPrefix + string(s)
}

// FeatureBuilder turns routes and preferences into model inputs.
// The lookup tables are read-only after construction.
type FeatureBuilder struct {
	trafficLevels    map[string]float64
	surfaceQualities map[string]float64
}

// NewFeatureBuilder returns a builder with Pathfinder's lookup tables.
func NewFeatureBuilder() *FeatureBuilder {
	return &FeatureBuilder{
		trafficLevels: map[string]float64{
			"avoid":   0.0,
			"neutral": 0.5,
		},
		surfaceQualities: map[string]float64{
			string(SurfaceAsphalt): 1.0,
			string(SurfaceDirt):    0.7,
			string(SurfaceGrass):   0.4,
		},
	}
}

// PrepareEnsembleFeatures builds the ensemble row for route. When columns
// is non-empty the row is reindexed to it: columns the route does not
// produce are 0, columns it produces that the schema lacks are dropped, and
// the order is the schema's.
func (b *FeatureBuilder) PrepareEnsembleFeatures(route *RouteSnapshot, columns []string) (FeatureVector, error) {
	if err := CheckRoute(route); err != nil {
		return FeatureVector{}, err
	}

	surface := SurfaceColumn(NormalizeSurface(string(route.SurfaceType)))
	natural := map[string]float64{
		ColDistance:      *route.Distance,
		ColElevationGain: elevation(route),
		ColHasSidewalks:  flag(*route.HasSidewalks),
		ColIsLit:         flag(*route.IsLit),
		surface:          1,
	}

	if len(columns) == 0 {
		names := append(append([]string(nil), baseEnsembleColumns...), surface)
		values := make([]float64, len(names))
		for i, n := range names {
			values[i] = natural[n]
		}
		return FeatureVector{Names: names, Values: values}, nil
	}

	values := make([]float64, len(columns))
	for i, c := range columns {
		values[i] = natural[c]
	}
	return FeatureVector{Names: append([]string(nil), columns...), Values: values}, nil
}

// PrepareNeuralFeatures builds the five-value neural row. It never fails:
// a nil route or absent attributes contribute 0 and absent preferences
// take their defaults.
func (b *FeatureBuilder) PrepareNeuralFeatures(route *RouteSnapshot, prefs Preferences) FeatureVector {
	var distance float64
	if route != nil && route.Distance != nil {
		distance = *route.Distance
	}
	return FeatureVector{
		Names: append([]string(nil), NeuralFeatureNames...),
		Values: []float64{
			distance,
			elevation(route),
			b.trafficLevel(prefs),
			b.surfaceQuality(prefs),
			safetyScore(prefs),
		},
	}
}

func (b *FeatureBuilder) trafficLevel(prefs Preferences) float64 {
	s, ok := prefs[PrefTraffic].(string)
	if !ok {
		return DefaultTrafficLevel
	}
	if v, ok := b.trafficLevels[strings.ToLower(s)]; ok {
		return v
	}
	return DefaultTrafficLevel
}

func (b *FeatureBuilder) surfaceQuality(prefs Preferences) float64 {
	raw, present := prefs[PrefSurface]
	if !present {
		return b.surfaceQualities[string(SurfaceAsphalt)]
	}
	s, ok := raw.(string)
	if !ok {
		return DefaultSurfaceQuality
	}
	if v, ok := b.surfaceQualities[strings.ToLower(s)]; ok {
		return v
	}
	return DefaultSurfaceQuality
}

func safetyScore(prefs Preferences) float64 {
	score := BaseSafetyScore
	if truthy(prefs[PrefRequireLighting]) {
		score += SafetyStep
	}
	if truthy(prefs[PrefRequireSidewalks]) {
		score += SafetyStep
	}
	return min(score, 1.0)
}

// EnsembleColumns derives the trained schema from a training batch: the
// base columns followed by one column per surface seen, sorted.
func EnsembleColumns(routes []RouteSnapshot) []string {
	seen := make(map[string]struct{})
	for i := range routes {
		seen[SurfaceColumn(NormalizeSurface(string(routes[i].SurfaceType)))] = struct{}{}
	}
	surfaces := make([]string, 0, len(seen))
	for c := range seen {
		surfaces = append(surfaces, c)
	}
	sort.Strings(surfaces)
	return append(append([]string(nil), baseEnsembleColumns...), surfaces...)
}

// CheckRoute reports a *MissingFeatureError for absent required attributes
// and ErrInvalidFeature for out-of-range ones.
func CheckRoute(route *RouteSnapshot) error {
	if route == nil {
		return &MissingFeatureError{Fields: []string{ColDistance, ColHasSidewalks, ColIsLit, "surface_type"}}
	}
	verr := validation.ValidateStruct(route)
	if verr == nil {
		return nil
	}
	if missing := verr.FieldsWithTag("required"); len(missing) > 0 {
		return &MissingFeatureError{Fields: missing}
	}
	return fmt.Errorf("%w: %v", ErrInvalidFeature, verr)
}

func elevation(route *RouteSnapshot) float64 {
	if route == nil || route.ElevationGain == nil {
		return 0
	}
	return *route.ElevationGain
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// truthy interprets a preference value as a boolean. Strings are parsed
// with strconv.ParseBool; unparseable strings are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case int32:
		return t != 0
	case uint:
		return t != 0
	case uint64:
		return t != 0
	default:
		return false
	}
}
