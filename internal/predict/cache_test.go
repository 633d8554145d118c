// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package predict

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	key, err := CacheKey(7, Preferences{
		"require_lighting":   true,
		"traffic_preference": "avoid",
		"max_km":             12.5,
		"laps":               3,
	})
	if err != nil {
		t.Fatalf("CacheKey() error = %v", err)
	}
	want := "route:7|laps:3_max_km:12.5_require_lighting:true_traffic_preference:avoid"
	if key != want {
		t.Errorf("CacheKey() = %q, want %q", key, want)
	}
}

func TestCacheKey_OrderIndependent(t *testing.T) {
	type pair struct {
		k string
		v any
	}
	pairs := []pair{{"a", "x"}, {"b", true}, {"c", 1.5}, {"d", "y"}}

	var first string
	for shift := range pairs {
		prefs := Preferences{}
		for i := range pairs {
			p := pairs[(i+shift)%len(pairs)]
			prefs[p.k] = p.v
		}
		key, err := CacheKey(1, prefs)
		if err != nil {
			t.Fatal(err)
		}
		if shift == 0 {
			first = key
			continue
		}
		if key != first {
			t.Errorf("insertion order %d: key %q != %q", shift, key, first)
		}
	}
}

func TestCacheKey_DistinguishesRoutesAndValues(t *testing.T) {
	a, _ := CacheKey(1, Preferences{"traffic_preference": "avoid"})
	b, _ := CacheKey(2, Preferences{"traffic_preference": "avoid"})
	c, _ := CacheKey(1, Preferences{"traffic_preference": "neutral"})
	d, _ := CacheKey(1, nil)
	seen := map[string]bool{}
	for _, k := range []string{a, b, c, d} {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
}

func TestCacheKey_Malformed(t *testing.T) {
	for _, v := range []any{nil, []string{"x"}, map[string]any{"a": 1}, struct{}{}} {
		_, err := CacheKey(1, Preferences{"bad": v})
		if !errors.Is(err, ErrInvalidPreference) {
			t.Errorf("CacheKey(%T) error = %v, want ErrInvalidPreference", v, err)
		}
	}
}

func TestPredictionCache_TTL(t *testing.T) {
	clock := newFakeClock()
	c := NewPredictionCache(10, time.Minute, WithCacheClock(clock.Now))

	c.Put("k", PredictionResult{RouteType: "road"})
	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry should be served")
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry exactly at TTL should still be served")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should not be served")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after expired read, want 0", c.Len())
	}
}

func TestPredictionCache_EvictsOldestInsertion(t *testing.T) {
	c := NewPredictionCache(3, time.Hour)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), PredictionResult{})
	}
	// Reading k0 does not protect it.
	c.Get("k0")
	c.Put("k3", PredictionResult{})

	if _, ok := c.Get("k0"); ok {
		t.Error("k0 should have been evicted first")
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestPredictionCache_OverwriteIsFreshInsertion(t *testing.T) {
	c := NewPredictionCache(2, time.Hour)
	c.Put("a", PredictionResult{QualityScore: 0.1})
	c.Put("b", PredictionResult{})
	c.Put("a", PredictionResult{QualityScore: 0.2})
	c.Put("c", PredictionResult{})

	if _, ok := c.Get("b"); ok {
		t.Error("b should be evicted, a was re-inserted after it")
	}
	got, ok := c.Get("a")
	if !ok || got.QualityScore != 0.2 {
		t.Errorf("Get(a) = %+v, %v; want overwritten value", got, ok)
	}
}

func TestPredictionCache_InvalidateAll(t *testing.T) {
	c := NewPredictionCache(10, time.Hour)
	c.Put("a", PredictionResult{})
	c.Put("b", PredictionResult{})

	if n := c.InvalidateAll(); n != 2 {
		t.Errorf("InvalidateAll() = %d, want 2", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("entry survived InvalidateAll")
	}
}
