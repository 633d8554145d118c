// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package routestore

import (
	"context"
	"sync"

	"github.com/tomtom215/pathfinder/internal/predict"
)

// MemoryStore is a map-backed route store.
type MemoryStore struct {
	mu     sync.RWMutex
	routes map[int64]predict.RouteSnapshot
}

// NewMemoryStore returns a store holding routes.
func NewMemoryStore(routes ...predict.RouteSnapshot) *MemoryStore {
	s := &MemoryStore{routes: make(map[int64]predict.RouteSnapshot, len(routes))}
	for i := range routes {
		s.routes[routes[i].ID] = routes[i]
	}
	return s
}

// GetRoute returns a copy of the stored snapshot, or nil, nil.
func (s *MemoryStore) GetRoute(ctx context.Context, id int64) (*predict.RouteSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	route, ok := s.routes[id]
	if !ok {
		return nil, nil
	}
	return &route, nil
}

// PutRoute stores route, replacing any route with the same id.
func (s *MemoryStore) PutRoute(_ context.Context, route *predict.RouteSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[route.ID] = *route
	return nil
}

// Len returns the number of routes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routes)
}
