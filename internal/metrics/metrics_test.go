// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPrediction(t *testing.T) {
	before := testutil.ToFloat64(PredictionsTotal.WithLabelValues(OutcomeFallback))

	RecordPrediction(OutcomeFallback, 2*time.Millisecond)

	if got := testutil.ToFloat64(PredictionsTotal.WithLabelValues(OutcomeFallback)); got != before+1 {
		t.Errorf("fallback predictions = %v, want %v", got, before+1)
	}
}

func TestRecordTraining(t *testing.T) {
	okBefore := testutil.ToFloat64(ModelTrainingTotal.WithLabelValues("ensemble", "success"))
	failBefore := testutil.ToFloat64(ModelTrainingTotal.WithLabelValues("ensemble", "failure"))

	RecordTraining("ensemble", time.Second, nil)
	RecordTraining("ensemble", time.Second, errors.New("bad labels"))

	if got := testutil.ToFloat64(ModelTrainingTotal.WithLabelValues("ensemble", "success")); got != okBefore+1 {
		t.Errorf("success count = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(ModelTrainingTotal.WithLabelValues("ensemble", "failure")); got != failBefore+1 {
		t.Errorf("failure count = %v, want %v", got, failBefore+1)
	}
}

func TestRecordModelScores(t *testing.T) {
	RecordModelScores("neural", map[string]float64{"r2_score": 0.42, "loss": 0.01})

	if got := testutil.ToFloat64(ModelScore.WithLabelValues("neural", "r2_score")); got != 0.42 {
		t.Errorf("r2_score gauge = %v, want 0.42", got)
	}
}

func TestSetServingVersion(t *testing.T) {
	SetServingVersion("1.0.100")
	SetServingVersion("1.0.200")

	if n := testutil.CollectAndCount(ModelVersionInfo); n != 1 {
		t.Errorf("version series = %d, want 1", n)
	}
	if got := testutil.ToFloat64(ModelVersionInfo.WithLabelValues("1.0.200")); got != 1 {
		t.Errorf("current version gauge = %v, want 1", got)
	}
}

func TestRecordRouteQuery(t *testing.T) {
	before := testutil.ToFloat64(RouteStoreQueryErrors.WithLabelValues("get_route"))

	RecordRouteQuery("get_route", time.Millisecond, nil)
	RecordRouteQuery("get_route", time.Millisecond, errors.New("locked"))

	if got := testutil.ToFloat64(RouteStoreQueryErrors.WithLabelValues("get_route")); got != before+1 {
		t.Errorf("errors = %v, want %v", got, before+1)
	}
}

func TestRecordArtifactSave(t *testing.T) {
	before := testutil.ToFloat64(ArtifactSaves.WithLabelValues("pathfinder_ann.gob.gz", "failure"))
	RecordArtifactSave("pathfinder_ann.gob.gz", errors.New("disk full"))
	if got := testutil.ToFloat64(ArtifactSaves.WithLabelValues("pathfinder_ann.gob.gz", "failure")); got != before+1 {
		t.Errorf("failed saves = %v, want %v", got, before+1)
	}
}
