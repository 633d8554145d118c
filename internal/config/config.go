// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

// Package config loads Pathfinder's configuration.
//
// Configuration is layered with Koanf v2: built-in defaults, then an optional
// YAML file, then environment variables. Later layers win:
//
//	defaults < config.yaml < environment
//
// The YAML file is taken from CONFIG_PATH when set, otherwise the first
// existing entry of DefaultConfigPaths. Environment variables are mapped
// explicitly (see envTransformFunc); anything unmapped is ignored so that
// unrelated variables never leak into the configuration.
//
// Example config.yaml:
//
//	models:
//	  dir: /var/lib/pathfinder/models
//	cache:
//	  ttl: 5m
//	  capacity: 1000
//	training:
//	  enabled: true
//	  interval: 24h
//	  data_path: /var/lib/pathfinder/training.json
package config

import "time"

// Config is the root configuration.
type Config struct {
	Models   ModelsConfig   `koanf:"models"`
	Ensemble EnsembleConfig `koanf:"ensemble"`
	Neural   NeuralConfig   `koanf:"neural"`
	Cache    CacheConfig    `koanf:"cache"`
	Training TrainingConfig `koanf:"training"`
	Routes   RoutesConfig   `koanf:"routes"`
	Ops      OpsConfig      `koanf:"ops"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ModelsConfig locates model artifacts.
type ModelsConfig struct {
	// Dir holds pathfinder_model.gob.gz, pathfinder_ann.gob.gz and the ANN
	// metadata sidecar. Created if absent.
	// Default: models
	Dir string `koanf:"dir" validate:"required"`
}

// EnsembleConfig holds the route-type classifier and difficulty regressor
// hyperparameters.
type EnsembleConfig struct {
	// Trees is the random forest size.
	// Default: 100
	Trees int `koanf:"trees" validate:"gte=1"`

	// MaxDepth limits each forest tree.
	// Default: 10
	MaxDepth int `koanf:"max_depth" validate:"gte=1"`

	// MinSamplesSplit is the smallest node the forest will split.
	// Default: 5
	MinSamplesSplit int `koanf:"min_samples_split" validate:"gte=2"`

	// BoostStages is the number of gradient boosting stages.
	// Default: 100
	BoostStages int `koanf:"boost_stages" validate:"gte=1"`

	// BoostLearningRate shrinks each boosting stage.
	// Default: 0.1
	BoostLearningRate float64 `koanf:"boost_learning_rate" validate:"gt=0,lte=1"`

	// BoostMaxDepth limits each boosting tree.
	// Default: 5
	BoostMaxDepth int `koanf:"boost_max_depth" validate:"gte=1"`

	// ValidationSplit is the trailing share of rows held out for scoring.
	// Default: 0.2
	ValidationSplit float64 `koanf:"validation_split" validate:"gte=0,lt=1"`

	// Seed makes training reproducible.
	// Default: 42
	Seed uint64 `koanf:"seed"`
}

// NeuralConfig holds the quality regressor hyperparameters.
type NeuralConfig struct {
	// Default: [128, 64, 32]
	HiddenLayers []int `koanf:"hidden_layers" validate:"min=1,dive,gte=1"`

	// Default: 0.001
	LearningRate float64 `koanf:"learning_rate" validate:"gt=0"`

	// Alpha is the L2 penalty.
	// Default: 0.0001
	Alpha float64 `koanf:"alpha" validate:"gte=0"`

	// Default: 32
	BatchSize int `koanf:"batch_size" validate:"gte=1"`

	// Default: 1000
	MaxIter int `koanf:"max_iter" validate:"gte=1"`

	// Default: true
	EarlyStopping bool `koanf:"early_stopping"`

	// Default: 0.1
	ValidationFraction float64 `koanf:"validation_fraction" validate:"gt=0,lt=1"`

	// Default: 10
	NIterNoChange int `koanf:"n_iter_no_change" validate:"gte=1"`

	// Default: 42
	Seed uint64 `koanf:"seed"`
}

// CacheConfig sizes the prediction cache.
type CacheConfig struct {
	// TTL is how long a cached prediction may be served.
	// Default: 5m
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`

	// Capacity bounds the number of cached predictions.
	// Default: 1000
	Capacity int `koanf:"capacity" validate:"gte=1"`
}

// TrainingConfig controls the periodic retraining service.
type TrainingConfig struct {
	// Enabled starts the retraining service.
	// Default: false
	Enabled bool `koanf:"enabled"`

	// Interval between retraining runs.
	// Default: 24h
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// OnStartup runs one retraining pass as soon as the service starts.
	// Default: false
	OnStartup bool `koanf:"on_startup"`

	// DataPath is the JSON training payload read on every run.
	DataPath string `koanf:"data_path"`

	// Timeout bounds one retraining run.
	// Default: 30m
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// RoutesConfig configures the SQLite route store.
type RoutesConfig struct {
	// Path is the SQLite database file.
	// Default: pathfinder.db
	Path string `koanf:"path" validate:"required"`

	// QueryTimeout bounds a single route lookup.
	// Default: 2s
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gt=0"`

	// BreakerFailures is the consecutive failure count that opens the
	// route store circuit breaker.
	// Default: 5
	BreakerFailures uint32 `koanf:"breaker_failures" validate:"gte=1"`

	// BreakerTimeout is how long the breaker stays open.
	// Default: 30s
	BreakerTimeout time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// OpsConfig configures the operational HTTP server (/metrics, /healthz).
type OpsConfig struct {
	// Default: true
	Enabled bool `koanf:"enabled"`

	// Default: 127.0.0.1
	Host string `koanf:"host"`

	// Default: 9464
	Port int `koanf:"port" validate:"gte=1,lte=65535"`

	// Default: 10s
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"gt=0"`

	// WriteTimeout bounds writing a response, including the prediction
	// itself on a cache miss.
	// Default: 30s
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`

	// Default: 10s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// CORSOrigins lists origins allowed to call the prediction endpoint from
	// a browser. Empty disables cross-origin access.
	// Default: []
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests is the per-IP request budget for the prediction
	// endpoint within RateLimitWindow. Zero disables rate limiting.
	// Default: 600
	RateLimitRequests int `koanf:"rate_limit_requests" validate:"gte=0"`

	// Default: 1m
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	// Level: trace, debug, info, warn, error, off.
	// Default: info
	Level string `koanf:"level"`

	// Format: json or console.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller adds file:line to each entry.
	// Default: false
	Caller bool `koanf:"caller"`
}
