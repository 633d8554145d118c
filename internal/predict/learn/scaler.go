// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package learn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler standardises columns to zero mean and unit variance.
// Fields are exported so the fitted scaler survives gob encoding.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// NewStandardScaler returns an unfitted scaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fitted reports whether Fit has been called successfully.
func (s *StandardScaler) Fitted() bool {
	return s != nil && len(s.Mean) > 0
}

// Fit computes per-column mean and population standard deviation.
// Columns with zero deviation get a scale of 1 so Transform leaves them
// centred rather than dividing by zero.
func (s *StandardScaler) Fit(x *mat.Dense) error {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return ErrEmptyInput
	}

	mean := make([]float64, cols)
	scale := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		m, sd := stat.PopMeanStdDev(col, nil)
		mean[j] = m
		if sd == 0 {
			sd = 1
		}
		scale[j] = sd
	}

	s.Mean = mean
	s.Scale = scale
	return nil
}

// Transform returns a standardised copy of x.
func (s *StandardScaler) Transform(x *mat.Dense) (*mat.Dense, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	rows, cols := x.Dims()
	if cols != len(s.Mean) {
		return nil, fmt.Errorf("%w: scaler fitted on %d columns, got %d", ErrShape, len(s.Mean), cols)
	}

	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, x)
	return out, nil
}

// FitTransform fits on x and returns the transformed copy.
func (s *StandardScaler) FitTransform(x *mat.Dense) (*mat.Dense, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

// TransformRow standardises a single row in place.
func (s *StandardScaler) TransformRow(row []float64) error {
	if !s.Fitted() {
		return ErrNotFitted
	}
	if len(row) != len(s.Mean) {
		return fmt.Errorf("%w: scaler fitted on %d columns, got %d", ErrShape, len(s.Mean), len(row))
	}
	for j := range row {
		row[j] = (row[j] - s.Mean[j]) / s.Scale[j]
	}
	return nil
}
