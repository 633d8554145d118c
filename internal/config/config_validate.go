// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package config

import (
	"fmt"

	"github.com/tomtom215/pathfinder/internal/logging"
	"github.com/tomtom215/pathfinder/internal/validation"
)

// Validate checks struct tag rules, then the rules that span fields.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTraining() error {
	if !c.Training.Enabled {
		return nil
	}
	if c.Training.DataPath == "" {
		return fmt.Errorf("TRAINING_DATA_PATH is required when TRAINING_ENABLED=true")
	}
	if c.Training.Timeout > c.Training.Interval {
		return fmt.Errorf("training.timeout (%s) must not exceed training.interval (%s)", c.Training.Timeout, c.Training.Interval)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, off, got %q", c.Logging.Level)
	}
	return nil
}

// LoggingOptions converts the logging section for logging.Init.
func (c *Config) LoggingOptions() logging.Config {
	opts := logging.DefaultConfig()
	opts.Level = c.Logging.Level
	opts.Format = c.Logging.Format
	opts.Caller = c.Logging.Caller
	return opts
}
