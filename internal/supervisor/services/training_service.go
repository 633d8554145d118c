// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/pathfinder/internal/predict"
)

// ErrUpdateRejected is returned by a training cycle whose update the
// coordinator did not complete.
var ErrUpdateRejected = errors.New("model update did not complete")

// ModelUpdater is the part of the coordinator the training loop drives.
type ModelUpdater interface {
	UpdateModels(ctx context.Context, data *predict.TrainingData) bool
}

// TrainingDataLoader reads one training payload.
type TrainingDataLoader func(path string) (*predict.TrainingData, error)

// TrainingServiceConfig holds configuration for the training service.
type TrainingServiceConfig struct {
	// DataPath is the training payload read on every cycle.
	DataPath string

	// OnStartup runs a cycle as soon as the service starts.
	OnStartup bool

	// Interval between scheduled cycles.
	// Default: 24h
	Interval time.Duration

	// Timeout bounds one cycle.
	// Default: 30m
	Timeout time.Duration
}

// TrainingService retrains the models from DataPath on a schedule.
type TrainingService struct {
	updater ModelUpdater
	load    TrainingDataLoader
	config  TrainingServiceConfig
	logger  zerolog.Logger
	name    string
}

// NewTrainingService creates a training service reading payloads with
// predict.LoadTrainingData.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainingService(updater ModelUpdater, cfg TrainingServiceConfig, logger zerolog.Logger) *TrainingService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &TrainingService{
		updater: updater,
		load:    predict.LoadTrainingData,
		config:  cfg,
		logger:  logger.With().Str("service", "training").Logger(),
		name:    "training-service",
	}
}

// WithLoader replaces the payload loader.
func (s *TrainingService) WithLoader(load TrainingDataLoader) *TrainingService {
	s.load = load
	return s
}

// Serve implements suture.Service. A failed cycle is logged and retried at
// the next tick; it never stops the service.
func (s *TrainingService) Serve(ctx context.Context) error {
	s.logger.Info().
		Str("data_path", s.config.DataPath).
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Msg("Training service starting")

	if s.config.OnStartup {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Startup training failed, will retry on schedule")
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Training service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Scheduled training failed")
			}
		}
	}
}

// RunOnce loads the payload and runs one model update.
func (s *TrainingService) RunOnce(ctx context.Context) error {
	trainCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	data, err := s.load(s.config.DataPath)
	if err != nil {
		return fmt.Errorf("load training data: %w", err)
	}
	if !s.updater.UpdateModels(trainCtx, data) {
		return ErrUpdateRejected
	}
	s.logger.Info().Dur("duration", time.Since(start)).Msg("Scheduled training complete")
	return nil
}

// String returns the service name for logging.
func (s *TrainingService) String() string {
	return s.name
}
