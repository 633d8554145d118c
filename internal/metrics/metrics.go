// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

// Package metrics defines Pathfinder's Prometheus instruments.
//
// All collectors register with the default registry through promauto and
// are served by the ops HTTP server at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prediction outcomes.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeComputed = "computed"
	OutcomeFallback = "fallback"
)

var (
	// Prediction Metrics
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_predictions_total",
			Help: "Route predictions served, by outcome",
		},
		[]string{"outcome"}, // cache_hit, computed, fallback
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pathfinder_prediction_duration_seconds",
			Help:    "Time to serve a route prediction",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// Prediction Cache Metrics
	PredictionCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pathfinder_prediction_cache_entries",
			Help: "Entries currently held in the prediction cache",
		},
	)

	PredictionCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_prediction_cache_evictions_total",
			Help: "Prediction cache evictions, by reason",
		},
		[]string{"reason"}, // capacity, expired, purged
	)

	// Model Lifecycle Metrics
	ModelTrainingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_model_training_total",
			Help: "Model training runs, by model and result",
		},
		[]string{"model", "result"}, // result: success, failure
	)

	ModelTrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathfinder_model_training_duration_seconds",
			Help:    "Model training duration",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"model"},
	)

	ModelScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathfinder_model_score",
			Help: "Latest evaluation score reported by a model",
		},
		[]string{"model", "metric"},
	)

	ModelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathfinder_model_state",
			Help: "Model state (0=uninitialized, 1=fresh, 2=loaded, 3=ready, 4=degraded)",
		},
		[]string{"model"},
	)

	ModelVersionInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathfinder_model_version_info",
			Help: "Serving coordinator version (value is always 1)",
		},
		[]string{"version"},
	)

	ArtifactSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_artifact_saves_total",
			Help: "Artifact writes, by artifact and result",
		},
		[]string{"artifact", "result"},
	)

	// Ops API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	// Route Store Metrics
	RouteStoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routestore_query_duration_seconds",
			Help:    "Duration of route store queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RouteStoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routestore_query_errors_total",
			Help: "Route store query errors",
		},
		[]string{"operation"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordPrediction records one served prediction.
func RecordPrediction(outcome string, duration time.Duration) {
	PredictionsTotal.WithLabelValues(outcome).Inc()
	PredictionDuration.Observe(duration.Seconds())
}

// RecordTraining records one training run for model.
func RecordTraining(model string, duration time.Duration, err error) {
	ModelTrainingDuration.WithLabelValues(model).Observe(duration.Seconds())
	ModelTrainingTotal.WithLabelValues(model, resultLabel(err)).Inc()
}

// RecordModelScores publishes evaluation scores for model.
func RecordModelScores(model string, scores map[string]float64) {
	for metric, v := range scores {
		ModelScore.WithLabelValues(model, metric).Set(v)
	}
}

// RecordArtifactSave records an artifact write.
func RecordArtifactSave(artifact string, err error) {
	ArtifactSaves.WithLabelValues(artifact, resultLabel(err)).Inc()
}

// SetServingVersion replaces the version info series.
func SetServingVersion(version string) {
	ModelVersionInfo.Reset()
	ModelVersionInfo.WithLabelValues(version).Set(1)
}

// RecordAPIRequest records an API request. endpoint is the route pattern,
// not the raw path, to keep label cardinality bounded.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRouteQuery records a route store query.
func RecordRouteQuery(operation string, duration time.Duration, err error) {
	RouteStoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		RouteStoreQueryErrors.WithLabelValues(operation).Inc()
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
