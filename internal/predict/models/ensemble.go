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

// scaledColumns are standardised before reaching the estimators; the flag
// and one-hot columns pass through unchanged.
var scaledColumns = []string{predict.ColDistance, predict.ColElevationGain}

// EnsembleConfig holds the ensemble hyperparameters.
type EnsembleConfig struct {
	Forest   learn.ForestConfig
	Boosting learn.BoostingConfig
}

// DefaultEnsembleConfig returns the hyperparameters Pathfinder ships with.
func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		Forest:   learn.DefaultForestConfig(),
		Boosting: learn.DefaultBoostingConfig(),
	}
}

// EnsembleArtifact is the persisted ensemble. Columns is the ordered schema
// the estimators were trained on and is stored as data so inference never
// has to infer it from estimator internals.
type EnsembleArtifact struct {
	Classifier    *learn.RandomForestClassifier
	Regressor     *learn.GradientBoostingRegressor
	Scaler        *learn.StandardScaler
	Version       string
	TrainedAt     time.Time
	Columns       []string
	ScaledColumns []string
}

func (a *EnsembleArtifact) trained() bool {
	return a != nil && a.Classifier.Fitted() && a.Regressor.Fitted() && a.Scaler.Fitted()
}

// Ensemble is the route-type classifier and difficulty regressor pair.
type Ensemble struct {
	lifecycle

	cfg      EnsembleConfig
	store    *storage.Store
	logger   zerolog.Logger
	features *predict.FeatureBuilder
	now      func() time.Time

	artifact atomic.Pointer[EnsembleArtifact]

	// initMu serialises Init calls.
	initMu sync.Mutex
}

// NewEnsemble creates an uninitialized ensemble persisting to store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEnsemble(cfg EnsembleConfig, store *storage.Store, logger zerolog.Logger) *Ensemble {
	return &Ensemble{
		lifecycle: lifecycle{name: predict.ModelEnsemble},
		cfg:       cfg,
		store:     store,
		logger:    logger.With().Str("component", "ensemble").Logger(),
		features:  predict.NewFeatureBuilder(),
		now:       time.Now,
	}
}

// Init loads the persisted artifact and self-validates it, or starts from
// fresh untrained estimators when none exists. A load failure returns
// ErrPersistence and leaves the model uninitialized. A failed self-test
// returns ErrValidation and leaves the model Degraded: it keeps serving,
// with every prediction flagged.
func (e *Ensemble) Init(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	var art EnsembleArtifact
	meta, err := e.store.Load(ctx, EnsembleFile, &art)
	if errors.Is(err, storage.ErrNotFound) {
		e.logger.Warn().Str("dir", e.store.Dir()).Msg("No existing ensemble artifact, initializing fresh estimators")
		e.artifact.Store(e.freshArtifact())
		e.set(predict.StateFresh)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load ensemble: %v", predict.ErrPersistence, err)
	}

	e.artifact.Store(&art)
	if !art.trained() {
		e.set(predict.StateFresh)
		return nil
	}
	e.set(predict.StateLoaded)

	if err := e.validate(&art); err != nil {
		e.set(predict.StateDegraded)
		return fmt.Errorf("%w: %v", predict.ErrValidation, err)
	}
	e.set(predict.StateReady)
	e.logger.Info().
		Str("version", art.Version).
		Time("saved_at", meta.SavedAt).
		Strs("columns", art.Columns).
		Msg("Ensemble loaded")
	return nil
}

func (e *Ensemble) freshArtifact() *EnsembleArtifact {
	return &EnsembleArtifact{
		Classifier: learn.NewRandomForestClassifier(e.cfg.Forest),
		Regressor:  learn.NewGradientBoostingRegressor(e.cfg.Boosting),
		Scaler:     learn.NewStandardScaler(),
		Version:    initialVersion,
	}
}

// validationRoute is run end to end through a loaded artifact.
func validationRoute() *predict.RouteSnapshot {
	distance, elevation, yes := 5.0, 100.0, true
	return &predict.RouteSnapshot{
		Distance:      &distance,
		ElevationGain: &elevation,
		HasSidewalks:  &yes,
		IsLit:         &yes,
		SurfaceType:   predict.SurfaceAsphalt,
	}
}

// validate runs the canned route through feature preparation and both
// estimators and requires finite outputs.
func (e *Ensemble) validate(art *EnsembleArtifact) error {
	fv, err := e.features.PrepareEnsembleFeatures(validationRoute(), art.Columns)
	if err != nil {
		return fmt.Errorf("prepare test features: %w", err)
	}
	out, err := predictWith(art, fv)
	if err != nil {
		return err
	}
	if out.RouteType == "" || math.IsNaN(out.DifficultyScore) || math.IsNaN(out.ConfidenceScore) {
		return errors.New("self-test produced empty or non-numeric output")
	}
	return nil
}

// Predict scores one ensemble row. Before Init it fails with
// ErrModelNotReady; while untrained it returns the neutral prior.
func (e *Ensemble) Predict(fv predict.FeatureVector) (predict.EnsemblePrediction, error) {
	art := e.artifact.Load()
	state := e.State()
	if art == nil || !state.Serving() {
		return predict.EnsemblePrediction{}, predict.ErrModelNotReady
	}
	if !art.trained() {
		return predict.EnsemblePrediction{
			RouteType:       predict.RouteTypeMixed,
			DifficultyScore: 0.5,
			ConfidenceScore: 0,
		}, nil
	}

	out, err := predictWith(art, fv)
	if err != nil {
		return predict.EnsemblePrediction{}, err
	}
	out.Degraded = state == predict.StateDegraded
	return out, nil
}

func predictWith(art *EnsembleArtifact, fv predict.FeatureVector) (predict.EnsemblePrediction, error) {
	row, err := art.row(fv)
	if err != nil {
		return predict.EnsemblePrediction{}, err
	}
	label, proba, err := art.Classifier.Predict(row)
	if err != nil {
		return predict.EnsemblePrediction{}, fmt.Errorf("classifier: %w", err)
	}
	difficulty, err := art.Regressor.Predict(row)
	if err != nil {
		return predict.EnsemblePrediction{}, fmt.Errorf("regressor: %w", err)
	}
	return predict.EnsemblePrediction{
		RouteType:       label,
		DifficultyScore: clip01(difficulty),
		ConfidenceScore: clip01(proba),
	}, nil
}

// row checks fv against the trained schema and returns a scaled copy.
func (a *EnsembleArtifact) row(fv predict.FeatureVector) ([]float64, error) {
	if len(fv.Names) != len(a.Columns) || len(fv.Values) != len(a.Columns) {
		return nil, fmt.Errorf("%w: ensemble expects %d columns, got %d", learn.ErrShape, len(a.Columns), len(fv.Names))
	}
	for i, c := range a.Columns {
		if fv.Names[i] != c {
			return nil, fmt.Errorf("%w: column %d is %q, trained schema has %q", learn.ErrShape, i, fv.Names[i], c)
		}
	}
	row := append([]float64(nil), fv.Values...)

	scaled := make([]float64, len(a.ScaledColumns))
	idx := make([]int, len(a.ScaledColumns))
	for i, c := range a.ScaledColumns {
		idx[i] = columnIndex(a.Columns, c)
		if idx[i] < 0 {
			return nil, fmt.Errorf("%w: scaled column %q missing from schema", learn.ErrShape, c)
		}
		scaled[i] = row[idx[i]]
	}
	if err := a.Scaler.TransformRow(scaled); err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	for i, j := range idx {
		row[j] = scaled[i]
	}
	return row, nil
}

// Fit trains a new artifact from routes and labels and persists it. The
// first 1-split rows train, the rest are held out for scoring; rows are
// not shuffled. The serving artifact is untouched until the returned
// Staged is committed.
func (e *Ensemble) Fit(ctx context.Context, routes []predict.RouteSnapshot, labels *predict.EnsembleLabels, split float64) (predict.Staged, error) {
	start := time.Now()
	art, err := e.fit(ctx, routes, labels, split)
	metrics.RecordTraining(predict.ModelEnsemble, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &stagedEnsemble{model: e, art: art}, nil
}

// Train is Fit followed by Commit.
func (e *Ensemble) Train(ctx context.Context, routes []predict.RouteSnapshot, labels *predict.EnsembleLabels, split float64) error {
	staged, err := e.Fit(ctx, routes, labels, split)
	if err != nil {
		return err
	}
	staged.Commit()
	return nil
}

//nolint:gocyclo // linear training pipeline with one check per step
func (e *Ensemble) fit(ctx context.Context, routes []predict.RouteSnapshot, labels *predict.EnsembleLabels, split float64) (*EnsembleArtifact, error) {
	log := logging.Ctx(logging.ContextWithLogger(ctx, e.logger))

	n := len(routes)
	if n == 0 || labels == nil {
		return nil, fmt.Errorf("%w: ensemble features and labels are required", predict.ErrTrainingData)
	}
	if len(labels.RouteType) != n || len(labels.Difficulty) != n {
		return nil, fmt.Errorf("%w: %d rows, %d route types, %d difficulties", predict.ErrTrainingData, n, len(labels.RouteType), len(labels.Difficulty))
	}
	if split < 0 || split >= 1 {
		return nil, fmt.Errorf("%w: validation split %v outside [0, 1)", predict.ErrTrainingData, split)
	}
	trainRows := int(float64(n) * (1 - split))
	if trainRows < 1 {
		return nil, fmt.Errorf("%w: no training rows left after a %v split of %d", predict.ErrTrainingData, split, n)
	}

	columns := predict.EnsembleColumns(routes)
	x := mat.NewDense(n, len(columns), nil)
	for i := range routes {
		fv, err := e.features.PrepareEnsembleFeatures(&routes[i], columns)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", predict.ErrTrainingData, i, err)
		}
		x.SetRow(i, fv.Values)
	}

	scaler := learn.NewStandardScaler()
	if err := scaleColumns(x, columns, scaler); err != nil {
		return nil, fmt.Errorf("%w: scale: %v", predict.ErrTrainingData, err)
	}

	xTrain := sliceRows(x, 0, trainRows)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info().Int("rows", trainRows).Int("columns", len(columns)).Msg("Training random forest classifier")
	classifier := learn.NewRandomForestClassifier(e.cfg.Forest)
	if err := classifier.Fit(xTrain, labels.RouteType[:trainRows]); err != nil {
		return nil, fmt.Errorf("%w: classifier: %v", predict.ErrTrainingData, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info().Int("rows", trainRows).Msg("Training gradient boosting regressor")
	regressor := learn.NewGradientBoostingRegressor(e.cfg.Boosting)
	if err := regressor.Fit(xTrain, labels.Difficulty[:trainRows]); err != nil {
		return nil, fmt.Errorf("%w: regressor: %v", predict.ErrTrainingData, err)
	}

	if trainRows < n {
		xVal := sliceRows(x, trainRows, n)
		accuracy, aerr := classifier.Score(xVal, labels.RouteType[trainRows:])
		r2, rerr := regressor.Score(xVal, labels.Difficulty[trainRows:])
		if err := errors.Join(aerr, rerr); err != nil {
			return nil, fmt.Errorf("%w: score: %v", predict.ErrTrainingData, err)
		}
		metrics.RecordModelScores(predict.ModelEnsemble, map[string]float64{"accuracy": accuracy, "r2_score": r2})
		log.Info().Float64("classifier_accuracy", accuracy).Float64("regressor_r2", r2).Msg("Ensemble validation scores")
	}

	now := e.now().UTC()
	art := &EnsembleArtifact{
		Classifier:    classifier,
		Regressor:     regressor,
		Scaler:        scaler,
		Version:       trainedVersion(now),
		TrainedAt:     now,
		Columns:       columns,
		ScaledColumns: append([]string(nil), scaledColumns...),
	}
	if err := e.save(ctx, art); err != nil {
		return nil, err
	}
	log.Info().Str("version", art.Version).Msg("Ensemble trained and saved")
	return art, nil
}

// Save persists the serving artifact.
func (e *Ensemble) Save(ctx context.Context) error {
	art := e.artifact.Load()
	if art == nil {
		return predict.ErrModelNotReady
	}
	return e.save(ctx, art)
}

func (e *Ensemble) save(ctx context.Context, art *EnsembleArtifact) error {
	err := e.store.Save(ctx, EnsembleFile, art, storage.Metadata{
		Name:      predict.ModelEnsemble,
		Version:   art.Version,
		TrainedAt: art.TrainedAt,
	})
	metrics.RecordArtifactSave(EnsembleFile, err)
	if err != nil {
		return fmt.Errorf("%w: save ensemble: %v", predict.ErrPersistence, err)
	}
	return nil
}

// Columns returns the trained schema, or nil before training.
func (e *Ensemble) Columns() []string {
	if art := e.artifact.Load(); art.trained() {
		return art.Columns
	}
	return nil
}

// Version returns the serving artifact's version, or "" before Init.
func (e *Ensemble) Version() string {
	if art := e.artifact.Load(); art != nil {
		return art.Version
	}
	return ""
}

// Info describes the ensemble.
func (e *Ensemble) Info() predict.ModelInfo {
	info := predict.ModelInfo{
		Name:             predict.ModelEnsemble,
		State:            e.State(),
		RequiredFeatures: append([]string(nil), predict.RequiredFeatures...),
	}
	if art := e.artifact.Load(); art != nil {
		info.Version = art.Version
		info.LastTrainingDate = timePtr(art.TrainedAt)
		info.Initialized = art.Classifier != nil && art.Regressor != nil
		info.Estimators = []string{"RandomForestClassifier", "GradientBoostingRegressor"}
	}
	return info
}

type stagedEnsemble struct {
	model *Ensemble
	art   *EnsembleArtifact
}

func (s *stagedEnsemble) Commit() {
	s.model.artifact.Store(s.art)
	s.model.set(predict.StateReady)
}

func (s *stagedEnsemble) Version() string {
	return s.art.Version
}

// scaleColumns fits scaler on the scaled columns of x and standardises
// them in place.
func scaleColumns(x *mat.Dense, columns []string, scaler *learn.StandardScaler) error {
	rows, _ := x.Dims()
	sub := mat.NewDense(rows, len(scaledColumns), nil)
	idx := make([]int, len(scaledColumns))
	for j, c := range scaledColumns {
		idx[j] = columnIndex(columns, c)
		for i := 0; i < rows; i++ {
			sub.Set(i, j, x.At(i, idx[j]))
		}
	}
	scaled, err := scaler.FitTransform(sub)
	if err != nil {
		return err
	}
	for j, col := range idx {
		for i := 0; i < rows; i++ {
			x.Set(i, col, scaled.At(i, j))
		}
	}
	return nil
}

func sliceRows(x *mat.Dense, from, to int) *mat.Dense {
	_, cols := x.Dims()
	return x.Slice(from, to, 0, cols).(*mat.Dense)
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
