// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package routestore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pathfinder/internal/metrics"
	"github.com/tomtom215/pathfinder/internal/predict"
)

// BreakerConfig configures a BreakerStore.
type BreakerConfig struct {
	// Name labels the breaker's metrics.
	Name string

	// QueryTimeout bounds each lookup. Zero disables the timeout.
	QueryTimeout time.Duration

	// ConsecutiveFailures opens the circuit.
	ConsecutiveFailures uint32

	// OpenTimeout is how long the circuit stays open before a probe.
	OpenTimeout time.Duration
}

// BreakerStore guards a route store with a timeout and a circuit breaker.
// While the circuit is open lookups fail immediately with
// gobreaker.ErrOpenState.
type BreakerStore struct {
	next    predict.RouteStore
	cb      *gobreaker.CircuitBreaker[*predict.RouteSnapshot]
	name    string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewBreakerStore wraps next.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBreakerStore(next predict.RouteStore, cfg BreakerConfig, logger zerolog.Logger) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = "routestore"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	s := &BreakerStore{
		next:    next,
		name:    cfg.Name,
		timeout: cfg.QueryTimeout,
		logger:  logger.With().Str("component", "routestore_breaker").Logger(),
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cfg.Name).Set(0)

	threshold := cfg.ConsecutiveFailures
	s.cb = gobreaker.NewCircuitBreaker[*predict.RouteSnapshot](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= threshold
			if trip {
				s.logger.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("Opening route store circuit")
			}
			return trip
		},
		// A caller giving up is not a store failure.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Route store circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})
	return s
}

// GetRoute looks the route up through the breaker.
func (s *BreakerStore) GetRoute(ctx context.Context, id int64) (*predict.RouteSnapshot, error) {
	route, err := s.cb.Execute(func() (*predict.RouteSnapshot, error) {
		qctx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		return s.next.GetRoute(qctx, id)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(s.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(s.name).Set(0)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(s.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(s.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(s.name).Set(float64(s.cb.Counts().ConsecutiveFailures))
	}
	return route, err
}

// State returns the breaker's current state.
func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
