// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

// Package api serves Pathfinder's operational HTTP surface using the Chi
// router: health, Prometheus metrics and per-route predictions.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/pathfinder/internal/logging"
	"github.com/tomtom215/pathfinder/internal/metrics"
	"github.com/tomtom215/pathfinder/internal/predict"
)

// Predictor is the part of the model coordinator the API serves.
type Predictor interface {
	GetRoutePredictions(ctx context.Context, routeID int64, prefs predict.Preferences) predict.PredictionResult
	Status() predict.Status
}

// Config configures the router's middleware.
type Config struct {
	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string

	// RateLimitRequests per RateLimitWindow, per client IP, on the
	// prediction endpoint. Zero disables rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Router owns the HTTP handlers.
type Router struct {
	predictor Predictor
	cfg       Config
	logger    zerolog.Logger
}

// NewRouter creates a router serving predictor.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(predictor Predictor, cfg Config, logger zerolog.Logger) *Router {
	return &Router{
		predictor: predictor,
		cfg:       cfg,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the Chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chimiddleware.RequestID)
	r.Use(rt.requestLogging)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)
	if len(rt.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         86400,
		}))
	}

	// ========================
	// Operational Endpoints
	// ========================
	r.Get("/healthz", rt.health)
	r.Get("/healthz/live", rt.live)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// ========================
	// Prediction Endpoints
	// ========================
	r.Route("/api/v1/routes", func(r chi.Router) {
		if rt.cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.RateLimitRequests, rt.cfg.RateLimitWindow))
		}
		r.Get("/{routeID}/predictions", rt.routePredictions)
	})

	return r
}

// requestLogging carries chi's request ID into the logging context as the
// correlation ID, so every log line of a request can be joined.
func (rt *Router) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := chimiddleware.GetReqID(ctx); id != "" {
			ctx = logging.ContextWithCorrelationID(ctx, id)
		}
		ctx = logging.ContextWithLogger(ctx, rt.logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestMetrics records one api_requests_total sample per request, keyed by
// the matched route pattern.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, endpoint, strconv.Itoa(status), time.Since(start))
	})
}
