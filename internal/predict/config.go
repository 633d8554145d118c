// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"fmt"
	"time"
)

// InitialVersion is the coordinator version before any model reports one.
const InitialVersion = "1.0.0"

// Config configures a Coordinator.
type Config struct {
	// CacheTTL is how long a prediction is served from cache.
	// Default: 5m
	CacheTTL time.Duration

	// CacheCapacity bounds the prediction cache.
	// Default: 1000
	CacheCapacity int

	// ValidationSplit is the trailing share of ensemble rows held out for
	// scoring during UpdateModels.
	// Default: 0.2
	ValidationSplit float64
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:        5 * time.Minute,
		CacheCapacity:   1000,
		ValidationSplit: 0.2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.CacheCapacity)
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("validation split must be in [0, 1), got %v", c.ValidationSplit)
	}
	return nil
}
