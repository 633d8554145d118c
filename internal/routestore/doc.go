// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

/*
Package routestore resolves route ids to the attribute snapshots the
prediction layer scores.

Three implementations of predict.RouteStore are provided:

  - SQLiteStore: the routes table in a SQLite database (modernc.org/sqlite,
    no cgo), with its schema managed by golang-migrate from embedded
    migration files
  - MemoryStore: a map-backed store for tests and the train-models tool
  - BreakerStore: wraps any store with a per-query timeout and a
    sony/gobreaker circuit breaker, so a failing database turns into fast
    errors (and fallback predictions) instead of piled-up requests

Nullable columns map to nil snapshot fields. A route with a NULL distance
is returned as-is and rejected later by feature validation.

Unknown ids are reported as (nil, nil), never as an error.
*/
package routestore
