// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/pathfinder/internal/logging"
	"github.com/tomtom215/pathfinder/internal/metrics"
)

// Model names used in logs and metric labels.
const (
	ModelEnsemble = "ensemble"
	ModelNeural   = "neural"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now for result timestamps, versions and cache
// expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator owns the ensemble and neural models, merges their outputs and
// caches the merged results. One Coordinator is built per process and
// shared by every request handler. It is safe for concurrent use.
type Coordinator struct {
	cfg      Config
	logger   zerolog.Logger
	routes   RouteStore
	ensemble EnsembleModel
	neural   NeuralModel
	features *FeatureBuilder
	cache    *PredictionCache
	now      func() time.Time

	// mu is held shared by predictions for their whole model read and cache
	// write, and exclusively while staged artifacts are committed and the
	// cache is purged.
	mu          sync.RWMutex
	version     string
	initialized bool
	lastStamp   int64

	// trainMu makes UpdateModels single-flight.
	trainMu  sync.Mutex
	training atomic.Bool

	requests  atomic.Int64
	fallbacks atomic.Int64
}

// NewCoordinator wires a coordinator. Models are not touched until
// InitializeModels.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCoordinator(cfg Config, routes RouteStore, ensemble EnsembleModel, neural NeuralModel, logger zerolog.Logger, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if routes == nil || ensemble == nil || neural == nil {
		return nil, errors.New("route store, ensemble and neural model are required")
	}

	c := &Coordinator{
		cfg:      cfg,
		logger:   logger.With().Str("component", "coordinator").Logger(),
		routes:   routes,
		ensemble: ensemble,
		neural:   neural,
		features: NewFeatureBuilder(),
		now:      time.Now,
		version:  InitialVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = NewPredictionCache(cfg.CacheCapacity, cfg.CacheTTL, WithCacheClock(c.now))
	return c, nil
}

// InitializeModels initializes both models independently. It reports true
// only when both end up Fresh or Ready. A model that fails its self-test
// still serves, flagged as fallback.
func (c *Coordinator) InitializeModels(ctx context.Context) bool {
	ok := true

	if err := c.ensemble.Init(ctx); err != nil {
		ok = false
		c.logger.Error().Err(err).Str("state", c.ensemble.State().String()).Msg("Ensemble initialization failed")
	}
	if err := c.neural.Load(ctx); err != nil {
		ok = false
		c.logger.Error().Err(err).Str("state", c.neural.State().String()).Msg("Neural model initialization failed")
	}

	version := c.ensemble.Version()
	if version == "" {
		version = InitialVersion
	}

	c.mu.Lock()
	c.version = version
	c.initialized = true
	c.mu.Unlock()

	metrics.SetServingVersion(version)
	c.logger.Info().
		Bool("success", ok).
		Str("version", version).
		Str("ensemble", c.ensemble.State().String()).
		Str("neural", c.neural.State().String()).
		Msg("Models initialized")
	return ok
}

// GetRoutePredictions returns the merged prediction for a route under the
// given preferences. It never fails: any error or panic yields Fallback().
func (c *Coordinator) GetRoutePredictions(ctx context.Context, routeID int64, prefs Preferences) (result PredictionResult) {
	start := time.Now()
	outcome := metrics.OutcomeComputed
	c.requests.Add(1)

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Interface("panic", r).
				Int64("route_id", routeID).
				Msg("Recovered panic during prediction")
			result = c.Fallback()
			outcome = metrics.OutcomeFallback
		}
		if outcome == metrics.OutcomeFallback {
			c.fallbacks.Add(1)
		}
		metrics.RecordPrediction(outcome, time.Since(start))
	}()

	res, hit, err := c.predict(ctx, routeID, prefs)
	if err != nil {
		c.logPredictionError(routeID, err)
		outcome = metrics.OutcomeFallback
		return c.Fallback()
	}
	if hit {
		outcome = metrics.OutcomeCacheHit
	}
	return res
}

func (c *Coordinator) predict(ctx context.Context, routeID int64, prefs Preferences) (PredictionResult, bool, error) {
	route, err := c.routes.GetRoute(ctx, routeID)
	if err != nil {
		return PredictionResult{}, false, fmt.Errorf("get route %d: %w", routeID, err)
	}
	if route == nil {
		return PredictionResult{}, false, fmt.Errorf("%w: %d", ErrRouteNotFound, routeID)
	}
	key, err := CacheKey(routeID, prefs)
	if err != nil {
		return PredictionResult{}, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if cached, ok := c.cache.Get(key); ok {
		return cached, true, nil
	}

	ensFeatures, err := c.features.PrepareEnsembleFeatures(route, c.ensemble.Columns())
	if err != nil {
		return PredictionResult{}, false, err
	}
	ens, err := c.ensemble.Predict(ensFeatures)
	if err != nil {
		return PredictionResult{}, false, fmt.Errorf("ensemble: %w", err)
	}

	neuralFeatures := c.features.PrepareNeuralFeatures(route, prefs)
	quality, err := c.neural.Predict(ctx, [][]float64{neuralFeatures.Values})
	if err != nil {
		return PredictionResult{}, false, fmt.Errorf("neural: %w", err)
	}
	if len(quality) != 1 {
		return PredictionResult{}, false, fmt.Errorf("neural: %d outputs for one row", len(quality))
	}

	result := PredictionResult{
		RouteType:       ens.RouteType,
		DifficultyScore: ens.DifficultyScore,
		QualityScore:    quality[0],
		ConfidenceScore: ens.ConfidenceScore,
		ModelVersion:    c.version,
		Timestamp:       c.now().UTC(),
		IsFallback:      ens.Degraded,
	}
	if err := checkScores(&result); err != nil {
		return PredictionResult{}, false, err
	}

	c.cache.Put(key, result)
	return result, false, nil
}

// checkScores rejects non-finite scores and clamps the rest into [0, 1].
func checkScores(r *PredictionResult) error {
	for _, s := range []struct {
		name string
		v    *float64
	}{
		{"difficulty", &r.DifficultyScore},
		{"quality", &r.QualityScore},
		{"confidence", &r.ConfidenceScore},
	} {
		if math.IsNaN(*s.v) || math.IsInf(*s.v, 0) {
			return fmt.Errorf("non-finite %s score", s.name)
		}
		*s.v = clip01(*s.v)
	}
	return nil
}

func (c *Coordinator) logPredictionError(routeID int64, err error) {
	var event *zerolog.Event
	switch {
	case errors.Is(err, ErrRouteNotFound):
		event = c.logger.Debug()
	case errors.Is(err, ErrMissingFeature), errors.Is(err, ErrInvalidFeature), errors.Is(err, ErrInvalidPreference):
		event = c.logger.Warn()
	default:
		event = c.logger.Error()
	}
	event.Err(err).Int64("route_id", routeID).Msg("Serving fallback prediction")
}

// Fallback returns the fixed low-confidence result with the current version
// and time.
func (c *Coordinator) Fallback() PredictionResult {
	return PredictionResult{
		RouteType:       FallbackRouteType,
		DifficultyScore: FallbackDifficulty,
		QualityScore:    FallbackQuality,
		ConfidenceScore: FallbackConfidence,
		ModelVersion:    c.Version(),
		Timestamp:       c.now().UTC(),
		IsFallback:      true,
	}
}

// UpdateModels retrains both models from data. It reports true only when
// both trained and were persisted.
//
// An incomplete payload is rejected before any model, file or cache is
// touched. Only one update runs at a time; a concurrent call returns false
// immediately. If exactly one model trains, its new artifact is committed
// (the version is bumped and the cache purged) and false is returned.
func (c *Coordinator) UpdateModels(ctx context.Context, data *TrainingData) bool {
	ctx = logging.ContextWithLogger(logging.ContextWithNewCorrelationID(ctx), c.logger)
	log := logging.Ctx(ctx)

	if err := data.Validate(); err != nil {
		log.Error().Err(err).Msg("Rejected training payload")
		return false
	}

	if !c.trainMu.TryLock() {
		log.Warn().Msg("Model update already in progress, skipping")
		return false
	}
	defer c.trainMu.Unlock()
	c.training.Store(true)
	defer c.training.Store(false)

	c.mu.RLock()
	initialized := c.initialized
	c.mu.RUnlock()
	if !initialized && !c.InitializeModels(ctx) {
		log.Warn().Msg("Initialization incomplete, training anyway")
	}

	start := time.Now()
	log.Info().
		Int("ensemble_rows", len(data.EnsembleFeatures)).
		Int("neural_rows", len(data.NeuralFeatures)).
		Msg("Model update started")

	ensStaged, ensErr := c.ensemble.Fit(ctx, data.EnsembleFeatures, data.EnsembleLabels, c.cfg.ValidationSplit)
	if ensErr != nil {
		log.Error().Err(ensErr).Msg("Ensemble training failed")
	}

	neuStaged, neuMetrics, neuErr := c.neural.Fit(ctx, data.NeuralFeatures, data.NeuralLabels)
	if neuErr != nil {
		log.Error().Err(neuErr).Msg("Neural training failed")
	} else {
		log.Info().
			Float64("r2_score", neuMetrics.R2Score).
			Float64("explained_variance", neuMetrics.ExplainedVariance).
			Int("n_iter", neuMetrics.NIter).
			Msg("Neural model trained")
	}

	if ensErr != nil && neuErr != nil {
		return false
	}

	version, purged := c.commit(ensStaged, neuStaged)
	log.Info().
		Str("version", version).
		Int("cache_purged", purged).
		Bool("complete", ensErr == nil && neuErr == nil).
		Dur("duration", time.Since(start)).
		Msg("Model update committed")

	return ensErr == nil && neuErr == nil
}

// commit swaps in the staged artifacts, bumps the version and purges the
// cache as one step with respect to predictions.
func (c *Coordinator) commit(staged ...Staged) (string, int) {
	c.mu.Lock()
	for _, s := range staged {
		if s != nil {
			s.Commit()
		}
	}
	stamp := c.now().Unix()
	if stamp <= c.lastStamp {
		stamp = c.lastStamp + 1
	}
	c.lastStamp = stamp
	c.version = fmt.Sprintf("1.0.%d", stamp)
	c.initialized = true
	purged := c.cache.InvalidateAll()
	version := c.version
	c.mu.Unlock()

	metrics.SetServingVersion(version)
	return version, purged
}

// Version returns the version stamped on new predictions.
func (c *Coordinator) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Status is a point-in-time summary for health endpoints.
type Status struct {
	Version      string    `json:"version"`
	Initialized  bool      `json:"initialized"`
	Training     bool      `json:"training"`
	CacheEntries int       `json:"cache_entries"`
	CacheHits    int64     `json:"cache_hits"`
	CacheMisses  int64     `json:"cache_misses"`
	Requests     int64     `json:"requests"`
	Fallbacks    int64     `json:"fallbacks"`
	Ensemble     ModelInfo `json:"ensemble"`
	Neural       ModelInfo `json:"neural"`
}

// Status reports the coordinator's current state.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	version, initialized := c.version, c.initialized
	c.mu.RUnlock()

	hits, misses := c.cache.Stats()
	return Status{
		Version:      version,
		Initialized:  initialized,
		Training:     c.training.Load(),
		CacheEntries: c.cache.Len(),
		CacheHits:    hits,
		CacheMisses:  misses,
		Requests:     c.requests.Load(),
		Fallbacks:    c.fallbacks.Load(),
		Ensemble:     c.ensemble.Info(),
		Neural:       c.neural.Info(),
	}
}
