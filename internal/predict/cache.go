// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/pathfinder/internal/cache"
	"github.com/tomtom215/pathfinder/internal/metrics"
)

// CacheOption configures a PredictionCache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	now func() time.Time
}

// WithCacheClock replaces time.Now for TTL checks.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(o *cacheOptions) {
		o.now = now
	}
}

// PredictionCache holds recent PredictionResults keyed by CacheKey.
// Entries expire TTL after insertion; expiry is checked on read. When full,
// the entry inserted longest ago is evicted.
type PredictionCache struct {
	store *cache.FIFO[PredictionResult]
}

// NewPredictionCache creates a cache of the given capacity and TTL.
func NewPredictionCache(capacity int, ttl time.Duration, opts ...CacheOption) *PredictionCache {
	o := cacheOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	store := cache.NewFIFO[PredictionResult](capacity, ttl,
		cache.WithClock[PredictionResult](o.now),
		cache.WithEvictHook[PredictionResult](func(_ string, reason cache.EvictReason) {
			metrics.PredictionCacheEvictions.WithLabelValues(string(reason)).Inc()
		}),
	)
	return &PredictionCache{store: store}
}

// Get returns the cached result for key if it has not expired.
func (c *PredictionCache) Get(key string) (PredictionResult, bool) {
	res, ok := c.store.Get(key)
	if !ok {
		metrics.PredictionCacheEntries.Set(float64(c.store.Len()))
	}
	return res, ok
}

// Put stores result under key, replacing any previous entry.
func (c *PredictionCache) Put(key string, result PredictionResult) {
	c.store.Put(key, result)
	metrics.PredictionCacheEntries.Set(float64(c.store.Len()))
}

// InvalidateAll drops every entry and returns how many were dropped.
func (c *PredictionCache) InvalidateAll() int {
	n := c.store.Purge()
	metrics.PredictionCacheEntries.Set(0)
	return n
}

// Len returns the number of stored entries, including expired ones not yet
// read.
func (c *PredictionCache) Len() int {
	return c.store.Len()
}

// Stats returns cache hit and miss counts.
func (c *PredictionCache) Stats() (hits, misses int64) {
	return c.store.Stats()
}

// CacheKey builds the cache key for a route and preference set:
//
//	route:<id>|<k1>:<v1>_<k2>:<v2>...
//
// with preference keys sorted, so equal sets give equal keys regardless of
// map order. Non-scalar values fail with ErrInvalidPreference.
func CacheKey(routeID int64, prefs Preferences) (string, error) {
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		v, err := formatPreference(prefs[k])
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidPreference, k, err)
		}
		pairs[i] = k + ":" + v
	}
	return "route:" + strconv.FormatInt(routeID, 10) + "|" + strings.Join(pairs, "_"), nil
}

func formatPreference(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t), nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}
