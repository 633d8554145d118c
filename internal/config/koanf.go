// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pathfinder/config.yaml",
	"/etc/pathfinder/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every default applied.
func defaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Dir: "models",
		},
		Ensemble: EnsembleConfig{
			Trees:             100,
			MaxDepth:          10,
			MinSamplesSplit:   5,
			BoostStages:       100,
			BoostLearningRate: 0.1,
			BoostMaxDepth:     5,
			ValidationSplit:   0.2,
			Seed:              42,
		},
		Neural: NeuralConfig{
			HiddenLayers:       []int{128, 64, 32},
			LearningRate:       0.001,
			Alpha:              0.0001,
			BatchSize:          32,
			MaxIter:            1000,
			EarlyStopping:      true,
			ValidationFraction: 0.1,
			NIterNoChange:      10,
			Seed:               42,
		},
		Cache: CacheConfig{
			TTL:      5 * time.Minute,
			Capacity: 1000,
		},
		Training: TrainingConfig{
			Enabled:   false, // opt-in: training is an administrative batch job
			Interval:  24 * time.Hour,
			OnStartup: false,
			DataPath:  "",
			Timeout:   30 * time.Minute,
		},
		Routes: RoutesConfig{
			Path:            "pathfinder.db",
			QueryTimeout:    2 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Ops: OpsConfig{
			Enabled:           true,
			Host:              "127.0.0.1",
			Port:              9464,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, the optional config file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first existing
// default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set from the environment.
var sliceConfigPaths = []string{
	"neural.hidden_layers",
	"ops.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"model_dir": "models.dir",

	"ensemble_trees":               "ensemble.trees",
	"ensemble_max_depth":           "ensemble.max_depth",
	"ensemble_min_samples_split":   "ensemble.min_samples_split",
	"ensemble_boost_stages":        "ensemble.boost_stages",
	"ensemble_boost_learning_rate": "ensemble.boost_learning_rate",
	"ensemble_boost_max_depth":     "ensemble.boost_max_depth",
	"ensemble_validation_split":    "ensemble.validation_split",
	"ensemble_seed":                "ensemble.seed",

	"neural_hidden_layers":       "neural.hidden_layers",
	"neural_learning_rate":       "neural.learning_rate",
	"neural_alpha":               "neural.alpha",
	"neural_batch_size":          "neural.batch_size",
	"neural_max_iter":            "neural.max_iter",
	"neural_early_stopping":      "neural.early_stopping",
	"neural_validation_fraction": "neural.validation_fraction",
	"neural_n_iter_no_change":    "neural.n_iter_no_change",
	"neural_seed":                "neural.seed",

	"cache_ttl":      "cache.ttl",
	"cache_capacity": "cache.capacity",

	"training_enabled":    "training.enabled",
	"training_interval":   "training.interval",
	"training_on_startup": "training.on_startup",
	"training_data_path":  "training.data_path",
	"training_timeout":    "training.timeout",

	"routes_db_path":          "routes.path",
	"routes_query_timeout":    "routes.query_timeout",
	"routes_breaker_failures": "routes.breaker_failures",
	"routes_breaker_timeout":  "routes.breaker_timeout",

	"ops_enabled":          "ops.enabled",
	"ops_host":             "ops.host",
	"ops_port":             "ops.port",
	"ops_read_timeout":     "ops.read_timeout",
	"ops_write_timeout":    "ops.write_timeout",
	"ops_shutdown_timeout": "ops.shutdown_timeout",
	"ops_cors_origins":     "ops.cors_origins",
	"ops_rate_limit":       "ops.rate_limit_requests",
	"ops_rate_window":      "ops.rate_limit_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped names return "" and are skipped.
//
// Examples:
//   - MODEL_DIR -> models.dir
//   - CACHE_TTL -> cache.ttl
//   - NEURAL_HIDDEN_LAYERS -> neural.hidden_layers
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
