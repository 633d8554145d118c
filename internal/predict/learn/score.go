// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package learn

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Accuracy returns the fraction of matching labels.
func Accuracy(yTrue, yPred []string) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	var hits int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(yTrue))
}

// R2 returns the coefficient of determination. A constant target scores 1
// when predicted exactly and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	if stat.PopVariance(yTrue, nil) == 0 {
		return perfectOrZero(yTrue, yPred)
	}
	r2 := stat.RSquaredFrom(yPred, yTrue, nil)
	if math.IsNaN(r2) {
		return 0
	}
	return r2
}

// ExplainedVariance returns 1 - Var(y - ŷ) / Var(y).
func ExplainedVariance(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	v := stat.PopVariance(yTrue, nil)
	if v == 0 {
		return perfectOrZero(yTrue, yPred)
	}
	resid := make([]float64, len(yTrue))
	for i := range yTrue {
		resid[i] = yTrue[i] - yPred[i]
	}
	return 1 - stat.PopVariance(resid, nil)/v
}

func perfectOrZero(yTrue, yPred []float64) float64 {
	for i := range yTrue {
		if yTrue[i] != yPred[i] {
			return 0
		}
	}
	return 1
}
