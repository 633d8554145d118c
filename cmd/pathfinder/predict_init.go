// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/pathfinder/internal/api"
	"github.com/tomtom215/pathfinder/internal/config"
	"github.com/tomtom215/pathfinder/internal/predict"
	"github.com/tomtom215/pathfinder/internal/predict/models"
	"github.com/tomtom215/pathfinder/internal/predict/storage"
	"github.com/tomtom215/pathfinder/internal/routestore"
	"github.com/tomtom215/pathfinder/internal/supervisor"
	"github.com/tomtom215/pathfinder/internal/supervisor/services"
)

// PredictionComponents holds everything behind the coordinator.
type PredictionComponents struct {
	Routes      *routestore.SQLiteStore
	Breaker     *routestore.BreakerStore
	Ensemble    *models.Ensemble
	Neural      *models.Neural
	Coordinator *predict.Coordinator

	logger    zerolog.Logger
	closeOnce sync.Once
}

// initPrediction opens the route database and model store and builds the
// coordinator. Models are not loaded here; call InitializeModels.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func initPrediction(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*PredictionComponents, error) {
	routes, err := routestore.OpenSQLite(ctx, cfg.Routes.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open route store: %w", err)
	}

	breaker := routestore.NewBreakerStore(routes, routestore.BreakerConfig{
		Name:                "routestore",
		QueryTimeout:        cfg.Routes.QueryTimeout,
		ConsecutiveFailures: cfg.Routes.BreakerFailures,
		OpenTimeout:         cfg.Routes.BreakerTimeout,
	}, logger)

	store, err := storage.NewStore(cfg.Models.Dir)
	if err != nil {
		_ = routes.Close() //nolint:errcheck // store error takes precedence
		return nil, fmt.Errorf("open model store: %w", err)
	}

	ensemble := models.NewEnsemble(models.EnsembleConfigFromSettings(&cfg.Ensemble), store, logger)
	neural := models.NewNeural(models.NeuralConfigFromSettings(&cfg.Neural), store, logger)

	coordinator, err := predict.NewCoordinator(predict.Config{
		CacheTTL:        cfg.Cache.TTL,
		CacheCapacity:   cfg.Cache.Capacity,
		ValidationSplit: cfg.Ensemble.ValidationSplit,
	}, breaker, ensemble, neural, logger)
	if err != nil {
		_ = routes.Close() //nolint:errcheck // coordinator error takes precedence
		return nil, fmt.Errorf("create coordinator: %w", err)
	}

	logger.Info().
		Str("model_dir", store.Dir()).
		Dur("cache_ttl", cfg.Cache.TTL).
		Int("cache_capacity", cfg.Cache.Capacity).
		Msg("Prediction components initialized")

	return &PredictionComponents{
		Routes:      routes,
		Breaker:     breaker,
		Ensemble:    ensemble,
		Neural:      neural,
		Coordinator: coordinator,
		logger:      logger,
	}, nil
}

// Close closes the route database. It is safe to call more than once.
func (c *PredictionComponents) Close() {
	c.closeOnce.Do(func() {
		if err := c.Routes.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Error closing route database")
		}
	})
}

// initTraining adds the scheduled training service when enabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func initTraining(cfg *config.Config, coordinator *predict.Coordinator, logger zerolog.Logger, tree *supervisor.Tree) {
	if !cfg.Training.Enabled {
		logger.Info().Msg("Scheduled training disabled (TRAINING_ENABLED=false)")
		return
	}

	svc := services.NewTrainingService(coordinator, services.TrainingServiceConfig{
		DataPath:  cfg.Training.DataPath,
		OnStartup: cfg.Training.OnStartup,
		Interval:  cfg.Training.Interval,
		Timeout:   cfg.Training.Timeout,
	}, logger)
	tree.AddModelService(svc)

	logger.Info().
		Str("data_path", cfg.Training.DataPath).
		Dur("interval", cfg.Training.Interval).
		Bool("on_startup", cfg.Training.OnStartup).
		Msg("Training service added to supervisor tree")
}

// initOpsServer adds the ops HTTP server when enabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func initOpsServer(cfg *config.Config, coordinator *predict.Coordinator, logger zerolog.Logger, tree *supervisor.Tree) {
	if !cfg.Ops.Enabled {
		logger.Info().Msg("Ops HTTP server disabled (OPS_ENABLED=false)")
		return
	}

	router := api.NewRouter(coordinator, api.Config{
		CORSOrigins:       cfg.Ops.CORSOrigins,
		RateLimitRequests: cfg.Ops.RateLimitRequests,
		RateLimitWindow:   cfg.Ops.RateLimitWindow,
	}, logger)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Ops.Host, strconv.Itoa(cfg.Ops.Port)),
		Handler:           router.Handler(),
		ReadTimeout:       cfg.Ops.ReadTimeout,
		ReadHeaderTimeout: cfg.Ops.ReadTimeout,
		WriteTimeout:      cfg.Ops.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddOpsService(services.NewHTTPServerService(server, cfg.Ops.ShutdownTimeout))

	logger.Info().Str("addr", server.Addr).Msg("Ops HTTP server service added")
}
