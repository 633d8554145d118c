// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package models

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/pathfinder/internal/predict"
	"github.com/tomtom215/pathfinder/internal/predict/learn"
	"github.com/tomtom215/pathfinder/internal/predict/storage"
)

var errInjected = errors.New("injected write failure")

// smallEnsembleConfig keeps training fast in tests.
func smallEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		Forest:   learn.ForestConfig{NEstimators: 10, MaxDepth: 4, MinSamplesSplit: 5, Seed: 42},
		Boosting: learn.BoostingConfig{NEstimators: 10, LearningRate: 0.1, MaxDepth: 3, MinSamplesSplit: 2, Seed: 42},
	}
}

func smallNeuralConfig() NeuralConfig {
	cfg := learn.DefaultMLPConfig()
	cfg.HiddenLayers = []int{8}
	cfg.MaxIter = 30
	cfg.LearningRate = 0.01
	return NeuralConfig{MLP: cfg}
}

func newTestStore(t *testing.T, opts ...storage.Option) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(filepath.Join(t.TempDir(), "models"), opts...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

// failingWriter fails every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errInjected
}

// switchableHook fails writes to files whose name has the given suffix
// while armed.
type switchableHook struct {
	suffix string
	armed  bool
}

func (h *switchableHook) wrap(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if h.armed && ok && strings.HasSuffix(f.Name(), h.suffix) {
		return failingWriter{}
	}
	return w
}

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.t
}

func newTestEnsemble(t *testing.T, store *storage.Store) *Ensemble {
	t.Helper()
	e := NewEnsemble(smallEnsembleConfig(), store, zerolog.Nop())
	e.now = (&fixedClock{t: time.Unix(1700000000, 0)}).Now
	return e
}

func newTestNeural(t *testing.T, store *storage.Store) *Neural {
	t.Helper()
	n := NewNeural(smallNeuralConfig(), store, zerolog.Nop())
	n.now = (&fixedClock{t: time.Unix(1700000000, 0)}).Now
	return n
}

func ptr[T any](v T) *T {
	return &v
}

func testRoute() *predict.RouteSnapshot {
	return &predict.RouteSnapshot{
		ID:            1,
		Distance:      ptr(5.2),
		ElevationGain: ptr(120.0),
		HasSidewalks:  ptr(true),
		IsLit:         ptr(false),
		SurfaceType:   predict.SurfaceAsphalt,
	}
}
