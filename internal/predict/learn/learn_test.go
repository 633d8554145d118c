// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package learn

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/mat"
)

// separable returns rows whose first column decides the label.
func separable(n int) (*mat.Dense, []string) {
	rng := rand.New(rand.NewPCG(7, 7))
	x := mat.NewDense(n, 2, nil)
	y := make([]string, n)
	for i := 0; i < n; i++ {
		v := rng.Float64()
		x.Set(i, 0, v)
		x.Set(i, 1, rng.Float64())
		if v < 0.5 {
			y[i] = "road"
		} else {
			y[i] = "trail"
		}
	}
	return x, y
}

func linear(n int) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewPCG(11, 11))
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b := rng.Float64()*2-1, rng.Float64()*2-1
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		y[i] = 3*a - 2*b
	}
	return x, y
}

func TestStandardScaler(t *testing.T) {
	t.Parallel()

	x := mat.NewDense(2, 2, []float64{1, 10, 3, 10})
	s := NewStandardScaler()
	out, err := s.FitTransform(x)
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}

	if diff := cmp.Diff([]float64{2, 10}, s.Mean); diff != "" {
		t.Errorf("Mean mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 1}, s.Scale); diff != "" {
		t.Errorf("Scale mismatch (-want +got):\n%s", diff)
	}
	want := []float64{-1, 0, 1, 0}
	if diff := cmp.Diff(want, out.RawMatrix().Data, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Transform mismatch (-want +got):\n%s", diff)
	}

	row := []float64{5, 10}
	if err := s.TransformRow(row); err != nil {
		t.Fatalf("TransformRow: %v", err)
	}
	if row[0] != 3 || row[1] != 0 {
		t.Errorf("TransformRow = %v, want [3 0]", row)
	}
}

func TestStandardScaler_Errors(t *testing.T) {
	t.Parallel()

	s := NewStandardScaler()
	if _, err := s.Transform(mat.NewDense(1, 1, nil)); !errors.Is(err, ErrNotFitted) {
		t.Errorf("Transform before Fit: err = %v, want ErrNotFitted", err)
	}
	if err := s.Fit(mat.NewDense(1, 2, []float64{1, 2})); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if err := s.TransformRow([]float64{1}); !errors.Is(err, ErrShape) {
		t.Errorf("TransformRow wrong width: err = %v, want ErrShape", err)
	}
}

func TestRandomForestClassifier(t *testing.T) {
	t.Parallel()

	x, y := separable(120)
	f := NewRandomForestClassifier(ForestConfig{NEstimators: 25, MaxDepth: 6, MinSamplesSplit: 2, Seed: 42})
	if err := f.Fit(x, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if diff := cmp.Diff([]string{"road", "trail"}, f.Classes); diff != "" {
		t.Errorf("Classes mismatch (-want +got):\n%s", diff)
	}

	acc, err := f.Score(x, y)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if acc < 0.95 {
		t.Errorf("training accuracy = %.3f, want >= 0.95", acc)
	}

	label, conf, err := f.Predict([]float64{0.05, 0.5})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if label != "road" {
		t.Errorf("Predict(0.05) = %q, want road", label)
	}
	if conf <= 0.5 || conf > 1 {
		t.Errorf("confidence = %v, want in (0.5, 1]", conf)
	}

	proba, err := f.PredictProba([]float64{0.95, 0.5})
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if math.Abs(proba[0]+proba[1]-1) > 1e-9 {
		t.Errorf("probabilities %v do not sum to 1", proba)
	}
}

func TestRandomForestClassifier_Deterministic(t *testing.T) {
	t.Parallel()

	x, y := separable(60)
	cfg := ForestConfig{NEstimators: 10, MaxDepth: 4, MinSamplesSplit: 2, Seed: 3}
	a, b := NewRandomForestClassifier(cfg), NewRandomForestClassifier(cfg)
	if err := a.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(x, y); err != nil {
		t.Fatal(err)
	}

	pa, _ := a.PredictProba([]float64{0.48, 0.2})
	pb, _ := b.PredictProba([]float64{0.48, 0.2})
	if diff := cmp.Diff(pa, pb); diff != "" {
		t.Errorf("same seed produced different forests (-a +b):\n%s", diff)
	}
}

func TestRandomForestClassifier_GobRoundTrip(t *testing.T) {
	t.Parallel()

	x, y := separable(60)
	f := NewRandomForestClassifier(ForestConfig{NEstimators: 5, MaxDepth: 4, MinSamplesSplit: 2, Seed: 1})
	if err := f.Fit(x, y); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var restored RandomForestClassifier
	if err := gob.NewDecoder(&buf).Decode(&restored); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, row := range [][]float64{{0.1, 0.1}, {0.49, 0.9}, {0.51, 0.3}, {0.9, 0.9}} {
		want, _ := f.PredictProba(row)
		got, err := restored.PredictProba(row)
		if err != nil {
			t.Fatalf("PredictProba after decode: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("row %v mismatch after gob (-want +got):\n%s", row, diff)
		}
	}
}

func TestRandomForestClassifier_NotFitted(t *testing.T) {
	t.Parallel()

	f := NewRandomForestClassifier(DefaultForestConfig())
	if _, _, err := f.Predict([]float64{1}); !errors.Is(err, ErrNotFitted) {
		t.Errorf("err = %v, want ErrNotFitted", err)
	}
}

func TestGradientBoostingRegressor(t *testing.T) {
	t.Parallel()

	x, y := linear(150)
	g := NewGradientBoostingRegressor(BoostingConfig{NEstimators: 100, LearningRate: 0.1, MaxDepth: 3, MinSamplesSplit: 2, Seed: 42})
	if err := g.Fit(x, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	r2, err := g.Score(x, y)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if r2 < 0.95 {
		t.Errorf("training R2 = %.3f, want >= 0.95", r2)
	}

	if _, err := g.Predict([]float64{1, 2, 3}); !errors.Is(err, ErrShape) {
		t.Errorf("Predict wrong width: err = %v, want ErrShape", err)
	}
}

func TestMLPRegressor_LearnsLinearTarget(t *testing.T) {
	t.Parallel()

	x, y := linear(200)
	m := NewMLPRegressor(MLPConfig{
		HiddenLayers:  []int{16},
		LearningRate:  0.01,
		Alpha:         1e-4,
		BatchSize:     32,
		MaxIter:       300,
		Tol:           1e-6,
		NIterNoChange: 10,
		Seed:          42,
	})
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	pred, err := m.Predict(x)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if r2 := R2(y, pred); r2 < 0.9 {
		t.Errorf("training R2 = %.3f, want >= 0.9", r2)
	}
	if m.NIter < 1 || m.NIter > 300 {
		t.Errorf("NIter = %d, want within [1, 300]", m.NIter)
	}
	if m.Loss <= 0 || math.IsNaN(m.Loss) {
		t.Errorf("Loss = %v, want positive finite", m.Loss)
	}
}

func TestMLPRegressor_EarlyStoppingDeterministic(t *testing.T) {
	t.Parallel()

	x, y := linear(100)
	cfg := DefaultMLPConfig()
	cfg.HiddenLayers = []int{8, 4}
	cfg.MaxIter = 50

	a, b := NewMLPRegressor(cfg), NewMLPRegressor(cfg)
	if err := a.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	if a.NIter > cfg.MaxIter {
		t.Errorf("NIter = %d exceeds MaxIter", a.NIter)
	}

	probe := mat.NewDense(1, 2, []float64{0.3, -0.2})
	pa, _ := a.Predict(probe)
	pb, _ := b.Predict(probe)
	if diff := cmp.Diff(pa, pb); diff != "" {
		t.Errorf("same seed produced different networks (-a +b):\n%s", diff)
	}
}

func TestMLPRegressor_Errors(t *testing.T) {
	t.Parallel()

	m := NewMLPRegressor(DefaultMLPConfig())
	if _, err := m.Predict(mat.NewDense(1, 2, nil)); !errors.Is(err, ErrNotFitted) {
		t.Errorf("Predict before Fit: err = %v, want ErrNotFitted", err)
	}
	if err := m.Fit(mat.NewDense(2, 2, nil), []float64{1}); !errors.Is(err, ErrShape) {
		t.Errorf("Fit with short targets: err = %v, want ErrShape", err)
	}
}

func TestScores(t *testing.T) {
	t.Parallel()

	y := []float64{1, 2, 3, 4}
	if got := R2(y, y); got != 1 {
		t.Errorf("R2(perfect) = %v, want 1", got)
	}
	if got := R2(y, []float64{2.5, 2.5, 2.5, 2.5}); math.Abs(got) > 1e-12 {
		t.Errorf("R2(mean) = %v, want 0", got)
	}
	if got := R2([]float64{2, 2}, []float64{2, 3}); got != 0 {
		t.Errorf("R2(constant target, miss) = %v, want 0", got)
	}
	if got := ExplainedVariance(y, []float64{2, 3, 4, 5}); math.Abs(got-1) > 1e-12 {
		t.Errorf("ExplainedVariance(shifted) = %v, want 1", got)
	}
	if got := Accuracy([]string{"a", "b", "c", "d"}, []string{"a", "b", "x", "d"}); got != 0.75 {
		t.Errorf("Accuracy = %v, want 0.75", got)
	}
}
