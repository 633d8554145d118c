// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/pathfinder/internal/predict"
)

type fakeUpdater struct {
	mu       sync.Mutex
	calls    int
	payloads []*predict.TrainingData
	result   bool
	deadline bool
}

func (f *fakeUpdater) UpdateModels(ctx context.Context, data *predict.TrainingData) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payloads = append(f.payloads, data)
	_, f.deadline = ctx.Deadline()
	return f.result
}

func (f *fakeUpdater) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writePayload(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(predict.SyntheticTrainingData(10, 1))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "training.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTrainingService_RunOnce(t *testing.T) {
	updater := &fakeUpdater{result: true}
	svc := NewTrainingService(updater, TrainingServiceConfig{DataPath: writePayload(t)}, zerolog.Nop())

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if updater.callCount() != 1 {
		t.Fatalf("UpdateModels calls = %d, want 1", updater.callCount())
	}
	if got := len(updater.payloads[0].NeuralLabels); got != 10 {
		t.Errorf("payload rows = %d, want 10", got)
	}
	if !updater.deadline {
		t.Error("update context has no deadline")
	}
}

func TestTrainingService_RunOnceErrors(t *testing.T) {
	t.Run("missing payload file", func(t *testing.T) {
		updater := &fakeUpdater{result: true}
		svc := NewTrainingService(updater, TrainingServiceConfig{DataPath: filepath.Join(t.TempDir(), "absent.json")}, zerolog.Nop())
		if err := svc.RunOnce(context.Background()); err == nil {
			t.Error("RunOnce() error = nil for a missing file")
		}
		if updater.callCount() != 0 {
			t.Error("UpdateModels called without a payload")
		}
	})

	t.Run("update rejected", func(t *testing.T) {
		updater := &fakeUpdater{result: false}
		svc := NewTrainingService(updater, TrainingServiceConfig{DataPath: writePayload(t)}, zerolog.Nop())
		if err := svc.RunOnce(context.Background()); !errors.Is(err, ErrUpdateRejected) {
			t.Errorf("RunOnce() error = %v, want ErrUpdateRejected", err)
		}
	})
}

func TestTrainingService_ServeOnStartupAndSchedule(t *testing.T) {
	updater := &fakeUpdater{result: true}
	payload := predict.SyntheticTrainingData(5, 1)
	svc := NewTrainingService(updater, TrainingServiceConfig{
		OnStartup: true,
		Interval:  20 * time.Millisecond,
	}, zerolog.Nop()).WithLoader(func(string) (*predict.TrainingData, error) {
		return payload, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v, want DeadlineExceeded", err)
	}
	if got := updater.callCount(); got < 2 {
		t.Errorf("UpdateModels calls = %d, want the startup run plus scheduled runs", got)
	}
}

func TestTrainingService_FailuresDoNotStopService(t *testing.T) {
	updater := &fakeUpdater{result: true}
	svc := NewTrainingService(updater, TrainingServiceConfig{
		OnStartup: true,
		Interval:  20 * time.Millisecond,
	}, zerolog.Nop()).WithLoader(func(string) (*predict.TrainingData, error) {
		return nil, errors.New("payload unavailable")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v, want it to run until the context ends", err)
	}
}

func TestNewTrainingService_Defaults(t *testing.T) {
	svc := NewTrainingService(&fakeUpdater{}, TrainingServiceConfig{}, zerolog.Nop())
	if svc.config.Interval != 24*time.Hour || svc.config.Timeout != 30*time.Minute {
		t.Errorf("config = %+v, want 24h interval and 30m timeout", svc.config)
	}
	if svc.String() != "training-service" {
		t.Errorf("String() = %q", svc.String())
	}
}
