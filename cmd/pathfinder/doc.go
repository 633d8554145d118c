// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

/*
Package main is the entry point for the Pathfinder prediction server.

Pathfinder scores routes for runners and walkers. For each route it predicts
a route type (road, trail or mixed), a difficulty score and a quality score,
combining a tree ensemble with a small neural network, and serves the merged
result with a confidence score.

# Application Architecture

The server runs under Suture v4 process supervision:

	RootSupervisor ("pathfinder")
	├── ModelSupervisor ("model-layer")
	│   └── Training service (optional, TRAINING_ENABLED=true)
	└── OpsSupervisor ("ops-layer")
	    └── HTTP server (/healthz, /metrics, /api/v1/routes/{id}/predictions)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Route store: SQLite (modernc.org/sqlite) with golang-migrate migrations,
    guarded by a gobreaker circuit breaker
 4. Model store: checksummed artifacts under MODEL_DIR
 5. Models: ensemble and neural network loaded from disk, or untrained
 6. Coordinator: prediction cache, fallback handling and model updates
 7. Supervisor tree: training loop and ops HTTP server

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
  - Environment variables
  - Config file (config.yaml, or CONFIG_PATH)
  - Built-in defaults

Frequently used variables:
  - MODEL_DIR: directory holding model artifacts (default: models)
  - ROUTES_DB_PATH: SQLite route database (default: pathfinder.db)
  - CACHE_TTL, CACHE_CAPACITY: prediction cache bounds
  - TRAINING_ENABLED, TRAINING_DATA_PATH, TRAINING_INTERVAL: scheduled retraining
  - OPS_HOST, OPS_PORT: ops HTTP listener (default: 127.0.0.1:9464)
  - OPS_READ_TIMEOUT, OPS_WRITE_TIMEOUT: request read and response write limits (default: 10s, 30s)
  - LOG_LEVEL, LOG_FORMAT: logging

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:
  - Stops accepting new connections
  - Waits for in-flight requests (OPS_SHUTDOWN_TIMEOUT)
  - Cancels a running training cycle; models being trained are discarded
  - Closes the route database

# Example Usage

Serve predictions with models trained by train-models:

	train-models -out ./models
	export MODEL_DIR=./models
	./pathfinder

Retrain nightly from a payload file:

	export TRAINING_ENABLED=true
	export TRAINING_DATA_PATH=/var/lib/pathfinder/training.json
	export TRAINING_INTERVAL=24h
	./pathfinder

Query a route:

	curl 'http://127.0.0.1:9464/api/v1/routes/42/predictions?require_lighting=true'
*/
package main
