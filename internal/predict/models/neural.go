// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/pathfinder/internal/logging"
	"github.com/tomtom215/pathfinder/internal/metrics"
	"github.com/tomtom215/pathfinder/internal/predict"
	"github.com/tomtom215/pathfinder/internal/predict/learn"
	"github.com/tomtom215/pathfinder/internal/predict/storage"
)

// neuralInputs is the width of a neural feature row.
const neuralInputs = 5

// neutralQuality is returned for every row while the network is untrained.
const neutralQuality = 0.5

// NeuralConfig holds the network hyperparameters.
type NeuralConfig struct {
	MLP learn.MLPConfig
}

// DefaultNeuralConfig returns the hyperparameters Pathfinder ships with.
func DefaultNeuralConfig() NeuralConfig {
	return NeuralConfig{MLP: learn.DefaultMLPConfig()}
}

// NeuralArtifact is the persisted network and its input scaler.
type NeuralArtifact struct {
	Regressor    *learn.MLPRegressor
	Scaler       *learn.StandardScaler
	Version      string
	TrainedAt    time.Time
	FeatureNames []string
	Metrics      predict.TrainingMetrics
}

func (a *NeuralArtifact) trained() bool {
	return a != nil && a.Regressor.Fitted() && a.Scaler.Fitted()
}

// NeuralMetadata is the JSON sidecar written next to the network.
type NeuralMetadata struct {
	Version      string                  `json:"version"`
	TrainingDate time.Time               `json:"training_date"`
	FeatureNames []string                `json:"feature_names"`
	InputShape   int                     `json:"input_shape"`
	Metrics      predict.TrainingMetrics `json:"metrics"`
}

// Neural is the route quality regressor.
type Neural struct {
	lifecycle

	cfg    NeuralConfig
	store  *storage.Store
	logger zerolog.Logger
	now    func() time.Time

	artifact atomic.Pointer[NeuralArtifact]

	// loadMu serialises Load; loaded is set once a load has been attempted.
	loadMu sync.Mutex
	loaded atomic.Bool

	// saveMu serialises Fit persistence so a compensating restore never
	// interleaves with another save.
	saveMu sync.Mutex
}

// NewNeural creates an unloaded network persisting to store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewNeural(cfg NeuralConfig, store *storage.Store, logger zerolog.Logger) *Neural {
	return &Neural{
		lifecycle: lifecycle{name: predict.ModelNeural},
		cfg:       cfg,
		store:     store,
		logger:    logger.With().Str("component", "neural").Logger(),
		now:       time.Now,
	}
}

// Build replaces the serving artifact with a freshly initialised, untrained
// network.
func (n *Neural) Build() {
	n.artifact.Store(&NeuralArtifact{
		Regressor:    learn.NewMLPRegressor(n.cfg.MLP),
		Scaler:       learn.NewStandardScaler(),
		Version:      initialVersion,
		FeatureNames: append([]string(nil), predict.NeuralFeatureNames...),
	})
	n.set(predict.StateFresh)
}

// Load restores the persisted network. A missing or unreadable artifact is
// not fatal: the network is rebuilt untrained and Load returns nil.
func (n *Neural) Load(ctx context.Context) error {
	n.loadMu.Lock()
	defer n.loadMu.Unlock()
	n.loaded.Store(true)

	var art NeuralArtifact
	_, err := n.store.Load(ctx, NeuralFile, &art)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		event := n.logger.Warn()
		if errors.Is(err, storage.ErrNotFound) {
			event = n.logger.Info()
		}
		event.Err(err).Msg("Neural artifact unavailable, building untrained network")
		n.Build()
		return nil
	}

	n.artifact.Store(&art)
	if !art.trained() {
		n.set(predict.StateFresh)
		return nil
	}
	n.set(predict.StateLoaded)

	var sidecar NeuralMetadata
	if err := n.store.LoadJSON(ctx, NeuralMetadataFile, &sidecar); err != nil {
		n.logger.Debug().Err(err).Msg("Neural metadata sidecar unavailable")
	} else if sidecar.Version != art.Version {
		n.logger.Warn().
			Str("artifact_version", art.Version).
			Str("sidecar_version", sidecar.Version).
			Msg("Neural metadata sidecar does not match artifact")
	}

	n.set(predict.StateReady)
	n.logger.Info().
		Str("version", art.Version).
		Float64("r2_score", art.Metrics.R2Score).
		Msg("Neural network loaded")
	return nil
}

// Predict returns one quality score in [0, 1] per row. The first call on
// an unloaded network loads it.
func (n *Neural) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if !n.loaded.Load() {
		if err := n.Load(ctx); err != nil {
			return nil, err
		}
	}
	art := n.artifact.Load()
	if art == nil || !n.State().Serving() {
		return nil, predict.ErrModelNotReady
	}

	if !art.trained() {
		out := make([]float64, len(rows))
		for i := range out {
			out[i] = neutralQuality
		}
		return out, nil
	}

	if len(rows) == 0 {
		return []float64{}, nil
	}
	x, err := denseRows(rows)
	if err != nil {
		return nil, err
	}
	scaled, err := art.Scaler.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	out, err := art.Regressor.Predict(scaled)
	if err != nil {
		return nil, err
	}
	for i, v := range out {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("network produced NaN for row %d", i)
		}
		out[i] = clip01(v)
	}
	return out, nil
}

// Fit trains a new network on x, y and persists it with its sidecar. If the
// sidecar cannot be written the network file is rolled back to what was on
// disk before, so the two never disagree.
func (n *Neural) Fit(ctx context.Context, x [][]float64, y []float64) (predict.Staged, predict.TrainingMetrics, error) {
	start := time.Now()
	art, err := n.fit(ctx, x, y)
	metrics.RecordTraining(predict.ModelNeural, time.Since(start), err)
	if err != nil {
		return nil, predict.TrainingMetrics{}, err
	}
	return &stagedNeural{model: n, art: art}, art.Metrics, nil
}

// Train is Fit followed by Commit.
func (n *Neural) Train(ctx context.Context, x [][]float64, y []float64) (predict.TrainingMetrics, error) {
	staged, m, err := n.Fit(ctx, x, y)
	if err != nil {
		return m, err
	}
	staged.Commit()
	return m, nil
}

func (n *Neural) fit(ctx context.Context, x [][]float64, y []float64) (*NeuralArtifact, error) {
	log := logging.Ctx(logging.ContextWithLogger(ctx, n.logger))

	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d neural rows, %d labels", predict.ErrTrainingData, len(x), len(y))
	}
	xm, err := denseRows(x)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", predict.ErrTrainingData, err)
	}

	scaler := learn.NewStandardScaler()
	xs, err := scaler.FitTransform(xm)
	if err != nil {
		return nil, fmt.Errorf("%w: scale: %v", predict.ErrTrainingData, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info().Int("rows", len(x)).Ints("hidden_layers", n.cfg.MLP.HiddenLayers).Msg("Training neural network")
	regressor := learn.NewMLPRegressor(n.cfg.MLP)
	if err := regressor.Fit(xs, y); err != nil {
		return nil, fmt.Errorf("%w: network: %v", predict.ErrTrainingData, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pred, err := regressor.Predict(xs)
	if err != nil {
		return nil, err
	}
	tm := predict.TrainingMetrics{
		ExplainedVariance: learn.ExplainedVariance(y, pred),
		R2Score:           learn.R2(y, pred),
		Loss:              regressor.Loss,
		NIter:             regressor.NIter,
	}
	metrics.RecordModelScores(predict.ModelNeural, map[string]float64{
		"explained_variance": tm.ExplainedVariance,
		"r2_score":           tm.R2Score,
		"loss":               tm.Loss,
	})

	now := n.now().UTC()
	art := &NeuralArtifact{
		Regressor:    regressor,
		Scaler:       scaler,
		Version:      trainedVersion(now),
		TrainedAt:    now,
		FeatureNames: append([]string(nil), predict.NeuralFeatureNames...),
		Metrics:      tm,
	}
	if err := n.persist(ctx, art); err != nil {
		return nil, err
	}
	log.Info().
		Str("version", art.Version).
		Float64("r2_score", tm.R2Score).
		Int("n_iter", tm.NIter).
		Msg("Neural network trained and saved")
	return art, nil
}

// persist writes the network, then the sidecar, restoring the previous
// network file if the sidecar write fails.
func (n *Neural) persist(ctx context.Context, art *NeuralArtifact) error {
	n.saveMu.Lock()
	defer n.saveMu.Unlock()

	var previous NeuralArtifact
	prevMeta, prevErr := n.store.Load(ctx, NeuralFile, &previous)

	err := n.store.Save(ctx, NeuralFile, art, storage.Metadata{
		Name:      predict.ModelNeural,
		Version:   art.Version,
		TrainedAt: art.TrainedAt,
	})
	metrics.RecordArtifactSave(NeuralFile, err)
	if err != nil {
		return fmt.Errorf("%w: save network: %v", predict.ErrPersistence, err)
	}

	err = n.store.SaveJSON(ctx, NeuralMetadataFile, NeuralMetadata{
		Version:      art.Version,
		TrainingDate: art.TrainedAt,
		FeatureNames: art.FeatureNames,
		InputShape:   neuralInputs,
		Metrics:      art.Metrics,
	})
	metrics.RecordArtifactSave(NeuralMetadataFile, err)
	if err == nil {
		return nil
	}

	var rerr error
	if prevErr == nil {
		rerr = n.store.Save(ctx, NeuralFile, &previous, *prevMeta)
	} else {
		rerr = n.store.Remove(NeuralFile)
	}
	if rerr != nil {
		n.logger.Error().Err(rerr).Msg("Failed to roll back network file after sidecar write failure")
	}
	return fmt.Errorf("%w: save network metadata: %v", predict.ErrPersistence, err)
}

// Info describes the network.
func (n *Neural) Info() predict.ModelInfo {
	info := predict.ModelInfo{
		Name:             predict.ModelNeural,
		State:            n.State(),
		RequiredFeatures: append([]string(nil), predict.NeuralFeatureNames...),
	}
	if art := n.artifact.Load(); art != nil {
		info.Version = art.Version
		info.LastTrainingDate = timePtr(art.TrainedAt)
		info.Initialized = art.Regressor != nil
		info.Estimators = []string{"MLPRegressor"}
	}
	return info
}

type stagedNeural struct {
	model *Neural
	art   *NeuralArtifact
}

func (s *stagedNeural) Commit() {
	s.model.artifact.Store(s.art)
	s.model.loaded.Store(true)
	s.model.set(predict.StateReady)
}

func (s *stagedNeural) Version() string {
	return s.art.Version
}

// denseRows packs rows of neural features into a matrix, checking width and
// finiteness.
func denseRows(rows [][]float64) (*mat.Dense, error) {
	x := mat.NewDense(len(rows), neuralInputs, nil)
	for i, r := range rows {
		if len(r) != neuralInputs {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", learn.ErrShape, i, len(r), neuralInputs)
		}
		for _, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d contains a non-finite value", i)
			}
		}
		x.SetRow(i, r)
	}
	return x, nil
}
