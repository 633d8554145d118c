// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type harness struct {
	clock    *fakeClock
	routes   *mockRoutes
	ensemble *mockEnsemble
	neural   *mockNeural
	coord    *Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		routes:   newMockRoutes(testRoute(1), testRoute(2)),
		ensemble: newMockEnsemble(),
		neural:   newMockNeural(),
	}
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	coord, err := NewCoordinator(cfg, h.routes, h.ensemble, h.neural, zerolog.Nop(), WithClock(h.clock.Now))
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	h.coord = coord
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	if !h.coord.InitializeModels(context.Background()) {
		t.Fatal("InitializeModels() = false")
	}
}

var scenarioPrefs = Preferences{
	"traffic_preference": "avoid",
	"surface_preference": "asphalt",
	"require_lighting":   true,
	"require_sidewalks":  true,
}

func assertFallback(t *testing.T, r PredictionResult) {
	t.Helper()
	if !r.IsFallback {
		t.Errorf("IsFallback = false, want true")
	}
	if r.RouteType != "mixed" || r.DifficultyScore != 0.5 || r.QualityScore != 0.5 || r.ConfidenceScore != 0 {
		t.Errorf("fallback scores = %+v", r)
	}
}

func assertBounded(t *testing.T, r PredictionResult) {
	t.Helper()
	for name, v := range map[string]float64{
		"difficulty": r.DifficultyScore,
		"quality":    r.QualityScore,
		"confidence": r.ConfidenceScore,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			t.Errorf("%s score %v outside [0,1]", name, v)
		}
	}
}

func TestNewCoordinator_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheCapacity = 0
	if _, err := NewCoordinator(cfg, newMockRoutes(), newMockEnsemble(), newMockNeural(), zerolog.Nop()); err == nil {
		t.Error("expected error for zero cache capacity")
	}
	if _, err := NewCoordinator(DefaultConfig(), nil, newMockEnsemble(), newMockNeural(), zerolog.Nop()); err == nil {
		t.Error("expected error for nil route store")
	}
}

func TestInitializeModels(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	if v := h.coord.Version(); v != InitialVersion {
		t.Errorf("Version() = %q, want %q when ensemble reports none", v, InitialVersion)
	}
	if !h.coord.Status().Initialized {
		t.Error("Status().Initialized = false")
	}
}

func TestInitializeModels_UsesEnsembleVersion(t *testing.T) {
	h := newHarness(t)
	h.ensemble.version = "1.1.1700000000"
	h.init(t)

	if v := h.coord.Version(); v != "1.1.1700000000" {
		t.Errorf("Version() = %q, want ensemble version", v)
	}
}

func TestInitializeModels_PartialFailure(t *testing.T) {
	h := newHarness(t)
	h.ensemble.initErr = ErrValidation

	if h.coord.InitializeModels(context.Background()) {
		t.Error("InitializeModels() = true, want false when ensemble fails")
	}
	if h.neural.State() != StateFresh {
		t.Errorf("neural state = %v, want fresh; models initialize independently", h.neural.State())
	}
}

func TestGetRoutePredictions_Scenario(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	r := h.coord.GetRoutePredictions(context.Background(), 1, scenarioPrefs)

	if r.IsFallback {
		t.Fatal("IsFallback = true, want real prediction")
	}
	assertBounded(t, r)
	want := PredictionResult{
		RouteType:       RouteTypeRoad,
		DifficultyScore: 0.3,
		QualityScore:    0.6,
		ConfidenceScore: 0.8,
		ModelVersion:    InitialVersion,
		Timestamp:       h.clock.Now(),
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestGetRoutePredictions_CacheHit(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	ctx := context.Background()

	first := h.coord.GetRoutePredictions(ctx, 1, scenarioPrefs)
	h.clock.Advance(10 * time.Second)
	second := h.coord.GetRoutePredictions(ctx, 1, scenarioPrefs)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached result differs (-first +second):\n%s", diff)
	}
	if n := h.ensemble.predictCalls.Load(); n != 1 {
		t.Errorf("ensemble Predict calls = %d, want 1", n)
	}
}

func TestGetRoutePredictions_PermutedPreferencesShareEntry(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	ctx := context.Background()

	permuted := Preferences{}
	for _, k := range []string{"require_sidewalks", "require_lighting", "surface_preference", "traffic_preference"} {
		permuted[k] = scenarioPrefs[k]
	}

	a := h.coord.GetRoutePredictions(ctx, 1, scenarioPrefs)
	b := h.coord.GetRoutePredictions(ctx, 1, permuted)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("results differ (-a +b):\n%s", diff)
	}
	if n := h.ensemble.predictCalls.Load(); n != 1 {
		t.Errorf("ensemble Predict calls = %d, want 1", n)
	}
}

func TestGetRoutePredictions_RecomputesAfterTTL(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	ctx := context.Background()

	h.coord.GetRoutePredictions(ctx, 1, nil)
	h.clock.Advance(2 * time.Minute)
	r := h.coord.GetRoutePredictions(ctx, 1, nil)

	if n := h.ensemble.predictCalls.Load(); n != 2 {
		t.Errorf("ensemble Predict calls = %d, want 2 after TTL", n)
	}
	assertBounded(t, r)
	if !r.Timestamp.Equal(h.clock.Now()) {
		t.Errorf("Timestamp = %v, want recomputed at %v", r.Timestamp, h.clock.Now())
	}
}

func TestGetRoutePredictions_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		routeID int64
		prefs   Preferences
		setup   func(h *harness)
	}{
		{name: "unknown route", routeID: 404},
		{name: "route store error", routeID: 1, setup: func(h *harness) { h.routes.err = errors.New("database is locked") }},
		{name: "missing feature", routeID: 3, setup: func(h *harness) {
			h.routes.routes[3] = &RouteSnapshot{ID: 3, Distance: ptr(2.0)}
		}},
		{name: "malformed preference", routeID: 1, prefs: Preferences{"laps": []int{1, 2}}},
		{name: "ensemble not ready", routeID: 1, setup: func(h *harness) { h.ensemble.state = StateUninitialized }},
		{name: "neural not ready", routeID: 1, setup: func(h *harness) { h.neural.predictErr = ErrModelNotReady }},
		{name: "panic inside model", routeID: 1, setup: func(h *harness) { h.ensemble.panics = true }},
		{name: "non-finite score", routeID: 1, setup: func(h *harness) { h.neural.quality = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.init(t)
			if tt.setup != nil {
				tt.setup(h)
			}

			r := h.coord.GetRoutePredictions(context.Background(), tt.routeID, tt.prefs)

			assertFallback(t, r)
			if r.ModelVersion != InitialVersion {
				t.Errorf("ModelVersion = %q, want %q", r.ModelVersion, InitialVersion)
			}
			if !r.Timestamp.Equal(h.clock.Now()) {
				t.Errorf("Timestamp = %v, want %v", r.Timestamp, h.clock.Now())
			}
			if h.coord.Status().Fallbacks != 1 {
				t.Errorf("Fallbacks = %d, want 1", h.coord.Status().Fallbacks)
			}
		})
	}
}

func TestGetRoutePredictions_BeforeInitialize(t *testing.T) {
	h := newHarness(t)
	assertFallback(t, h.coord.GetRoutePredictions(context.Background(), 1, nil))
}

func TestGetRoutePredictions_DegradedFlagsFallback(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.ensemble.result.Degraded = true

	r := h.coord.GetRoutePredictions(context.Background(), 1, nil)
	if !r.IsFallback {
		t.Error("IsFallback = false for degraded ensemble")
	}
	if r.DifficultyScore != 0.3 {
		t.Errorf("DifficultyScore = %v, want the degraded model's own output", r.DifficultyScore)
	}
}

func TestGetRoutePredictions_ClampsScores(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.ensemble.result.DifficultyScore = 1.7
	h.neural.quality = -0.2

	r := h.coord.GetRoutePredictions(context.Background(), 1, nil)
	if r.DifficultyScore != 1 || r.QualityScore != 0 {
		t.Errorf("scores = %v/%v, want clamped to 1/0", r.DifficultyScore, r.QualityScore)
	}
}

func TestUpdateModels_PurgesCacheAndBumpsVersion(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	ctx := context.Background()

	before := h.coord.GetRoutePredictions(ctx, 1, scenarioPrefs)
	h.clock.Advance(time.Second)

	if !h.coord.UpdateModels(ctx, SyntheticTrainingData(20, 1)) {
		t.Fatal("UpdateModels() = false")
	}

	wantVersion := "1.0." + strconv.FormatInt(h.clock.Now().Unix(), 10)
	if v := h.coord.Version(); v != wantVersion {
		t.Errorf("Version() = %q, want %q", v, wantVersion)
	}
	if n := h.coord.Status().CacheEntries; n != 0 {
		t.Errorf("cache entries = %d after update, want 0", n)
	}

	after := h.coord.GetRoutePredictions(ctx, 1, scenarioPrefs)
	if after.ModelVersion == before.ModelVersion {
		t.Errorf("ModelVersion unchanged: %q", after.ModelVersion)
	}
	if after.ModelVersion != wantVersion {
		t.Errorf("ModelVersion = %q, want %q", after.ModelVersion, wantVersion)
	}
	if after.RouteType != RouteTypeTrail || after.QualityScore != 0.75 {
		t.Errorf("after update = %+v, want retrained outputs", after)
	}
}

func TestUpdateModels_VersionStrictlyIncreases(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	ctx := context.Background()
	data := SyntheticTrainingData(10, 2)

	if !h.coord.UpdateModels(ctx, data) {
		t.Fatal("first UpdateModels() = false")
	}
	first := h.coord.Version()
	if !h.coord.UpdateModels(ctx, data) {
		t.Fatal("second UpdateModels() = false")
	}
	second := h.coord.Version()

	if first == second {
		t.Errorf("version did not change within the same second: %q", first)
	}
	if want := "1.0." + strconv.FormatInt(h.clock.Now().Unix()+1, 10); second != want {
		t.Errorf("second version = %q, want %q", second, want)
	}
}

func TestUpdateModels_MissingLabelsTouchesNothing(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	ctx := context.Background()
	h.coord.GetRoutePredictions(ctx, 1, scenarioPrefs)

	data := SyntheticTrainingData(10, 3)
	data.EnsembleLabels = nil

	if h.coord.UpdateModels(ctx, data) {
		t.Fatal("UpdateModels() = true for payload without ensemble_labels")
	}
	if h.ensemble.fitCalls.Load() != 0 || h.neural.fitCalls.Load() != 0 {
		t.Error("a model was trained from a rejected payload")
	}
	if n := h.coord.Status().CacheEntries; n != 1 {
		t.Errorf("cache entries = %d, want 1 (untouched)", n)
	}
	if v := h.coord.Version(); v != InitialVersion {
		t.Errorf("Version() = %q, want unchanged", v)
	}
}

func TestUpdateModels_NilPayload(t *testing.T) {
	h := newHarness(t)
	if h.coord.UpdateModels(context.Background(), nil) {
		t.Error("UpdateModels(nil) = true")
	}
}

func TestUpdateModels_PartialFailure(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	ctx := context.Background()
	h.coord.GetRoutePredictions(ctx, 1, nil)
	h.neural.fitErr = errors.New("diverged")

	if h.coord.UpdateModels(ctx, SyntheticTrainingData(10, 4)) {
		t.Fatal("UpdateModels() = true with a failed neural fit")
	}
	if h.ensemble.fitCalls.Load() != 1 || h.neural.fitCalls.Load() != 1 {
		t.Error("both models should be attempted")
	}

	// The ensemble's new artifact is live, so the version moves and the
	// cache is purged.
	if v := h.coord.Version(); v == InitialVersion {
		t.Error("version not bumped after partial update")
	}
	r := h.coord.GetRoutePredictions(ctx, 1, nil)
	if r.RouteType != RouteTypeTrail || r.QualityScore != 0.6 {
		t.Errorf("after partial update = %+v, want new ensemble and old neural outputs", r)
	}
}

func TestUpdateModels_BothFail(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.ensemble.fitErr = ErrTrainingData
	h.neural.fitErr = ErrPersistence

	if h.coord.UpdateModels(context.Background(), SyntheticTrainingData(10, 5)) {
		t.Fatal("UpdateModels() = true")
	}
	if v := h.coord.Version(); v != InitialVersion {
		t.Errorf("Version() = %q, want unchanged", v)
	}
}

func TestUpdateModels_InitializesFirst(t *testing.T) {
	h := newHarness(t)

	if !h.coord.UpdateModels(context.Background(), SyntheticTrainingData(10, 6)) {
		t.Fatal("UpdateModels() = false")
	}
	if !h.coord.Status().Initialized {
		t.Error("coordinator not initialized by UpdateModels")
	}
	assertBounded(t, h.coord.GetRoutePredictions(context.Background(), 1, nil))
}

func TestUpdateModels_SingleFlight(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.ensemble.fitStarted = make(chan struct{})
	h.ensemble.fitRelease = make(chan struct{})
	ctx := context.Background()
	data := SyntheticTrainingData(10, 7)

	var wg sync.WaitGroup
	var firstOK bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstOK = h.coord.UpdateModels(ctx, data)
	}()
	<-h.ensemble.fitStarted

	if !h.coord.Status().Training {
		t.Error("Status().Training = false during update")
	}
	// Requests keep being served from the old models while training runs.
	if r := h.coord.GetRoutePredictions(ctx, 2, nil); r.IsFallback || r.ModelVersion != InitialVersion {
		t.Errorf("prediction during training = %+v", r)
	}
	if h.coord.UpdateModels(ctx, data) {
		t.Error("concurrent UpdateModels() = true, want false")
	}

	close(h.ensemble.fitRelease)
	wg.Wait()

	if !firstOK {
		t.Error("first UpdateModels() = false")
	}
	if n := h.ensemble.fitCalls.Load(); n != 1 {
		t.Errorf("ensemble Fit calls = %d, want 1", n)
	}
}

func TestGetRoutePredictions_ConcurrentWithUpdate(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r := h.coord.GetRoutePredictions(ctx, id, Preferences{"n": j % 5})
				if r.IsFallback {
					t.Errorf("unexpected fallback: %+v", r)
					return
				}
				assertBounded(t, r)
			}
		}(int64(i%2 + 1))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.coord.UpdateModels(ctx, SyntheticTrainingData(10, 8))
	}()
	wg.Wait()

	// Every entry cached after the commit carries the new version.
	r := h.coord.GetRoutePredictions(ctx, 1, Preferences{"n": 0})
	if r.ModelVersion != h.coord.Version() {
		t.Errorf("cached version %q != current %q", r.ModelVersion, h.coord.Version())
	}
}
