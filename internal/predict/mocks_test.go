// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

func ptr[T any](v T) *T { return &v }

// testRoute is the canonical five-attribute route.
func testRoute(id int64) *RouteSnapshot {
	return &RouteSnapshot{
		ID:            id,
		Distance:      ptr(5.0),
		ElevationGain: ptr(100.0),
		HasSidewalks:  ptr(true),
		IsLit:         ptr(true),
		SurfaceType:   SurfaceAsphalt,
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type mockRoutes struct {
	mu     sync.Mutex
	routes map[int64]*RouteSnapshot
	err    error
}

func newMockRoutes(routes ...*RouteSnapshot) *mockRoutes {
	m := &mockRoutes{routes: make(map[int64]*RouteSnapshot)}
	for _, r := range routes {
		m.routes[r.ID] = r
	}
	return m
}

func (m *mockRoutes) GetRoute(_ context.Context, id int64) (*RouteSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.routes[id], nil
}

type mockStaged struct {
	version string
	commit  func()
}

func (s *mockStaged) Commit() {
	if s.commit != nil {
		s.commit()
	}
}

func (s *mockStaged) Version() string { return s.version }

type mockEnsemble struct {
	mu         sync.Mutex
	state      ModelState
	version    string
	columns    []string
	initErr    error
	result     EnsemblePrediction
	trained    EnsemblePrediction
	predictErr error
	panics     bool
	fitErr     error

	// fitStarted is closed when Fit begins; Fit then waits on fitRelease.
	fitStarted chan struct{}
	fitRelease chan struct{}

	fitCalls     atomic.Int64
	predictCalls atomic.Int64
}

func newMockEnsemble() *mockEnsemble {
	return &mockEnsemble{
		result:  EnsemblePrediction{RouteType: RouteTypeRoad, DifficultyScore: 0.3, ConfidenceScore: 0.8},
		trained: EnsemblePrediction{RouteType: RouteTypeTrail, DifficultyScore: 0.7, ConfidenceScore: 0.9},
	}
}

func (m *mockEnsemble) Init(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initErr != nil {
		return m.initErr
	}
	m.state = StateFresh
	return nil
}

func (m *mockEnsemble) Predict(FeatureVector) (EnsemblePrediction, error) {
	m.predictCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics {
		panic("estimator exploded")
	}
	if m.predictErr != nil {
		return EnsemblePrediction{}, m.predictErr
	}
	if m.state == StateUninitialized {
		return EnsemblePrediction{}, ErrModelNotReady
	}
	return m.result, nil
}

func (m *mockEnsemble) Fit(ctx context.Context, _ []RouteSnapshot, _ *EnsembleLabels, _ float64) (Staged, error) {
	m.fitCalls.Add(1)
	if m.fitStarted != nil {
		close(m.fitStarted)
		select {
		case <-m.fitRelease:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.fitErr != nil {
		return nil, m.fitErr
	}
	return &mockStaged{version: "1.1.1", commit: func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.result = m.trained
		m.version = "1.1.1"
		m.state = StateReady
	}}, nil
}

func (m *mockEnsemble) Columns() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.columns
}

func (m *mockEnsemble) Version() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *mockEnsemble) State() ModelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockEnsemble) Info() ModelInfo {
	return ModelInfo{Name: ModelEnsemble, Version: m.Version(), State: m.State(), Initialized: m.State().Serving()}
}

type mockNeural struct {
	mu         sync.Mutex
	state      ModelState
	loadErr    error
	quality    float64
	trained    float64
	predictErr error
	fitErr     error

	fitCalls atomic.Int64
}

func newMockNeural() *mockNeural {
	return &mockNeural{quality: 0.6, trained: 0.75}
}

func (m *mockNeural) Load(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return m.loadErr
	}
	m.state = StateFresh
	return nil
}

func (m *mockNeural) Predict(_ context.Context, rows [][]float64) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictErr != nil {
		return nil, m.predictErr
	}
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = m.quality
	}
	return out, nil
}

func (m *mockNeural) Fit(context.Context, [][]float64, []float64) (Staged, TrainingMetrics, error) {
	m.fitCalls.Add(1)
	if m.fitErr != nil {
		return nil, TrainingMetrics{}, m.fitErr
	}
	return &mockStaged{version: "1.1.1", commit: func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.quality = m.trained
		m.state = StateReady
	}}, TrainingMetrics{R2Score: 0.5, NIter: 12}, nil
}

func (m *mockNeural) State() ModelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockNeural) Info() ModelInfo {
	return ModelInfo{Name: ModelNeural, State: m.State(), Initialized: m.State().Serving()}
}
