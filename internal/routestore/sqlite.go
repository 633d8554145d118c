// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package routestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/tomtom215/pathfinder/internal/metrics"
	"github.com/tomtom215/pathfinder/internal/predict"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pragmas applied to every connection pool on open.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

const selectRoute = `
	SELECT id, distance, elevation_gain, has_sidewalks, is_lit, surface_type
	FROM routes
	WHERE id = ?`

const upsertRoute = `
	INSERT INTO routes (id, distance, elevation_gain, has_sidewalks, is_lit, surface_type)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		distance = excluded.distance,
		elevation_gain = excluded.elevation_gain,
		has_sidewalks = excluded.has_sidewalks,
		is_lit = excluded.is_lit,
		surface_type = excluded.surface_type`

// SQLiteStore reads route snapshots from the routes table.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// it to the latest schema.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open route database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close() //nolint:errcheck // pragma error takes precedence
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "routestore").Logger(),
	}
	if err := s.migrateUp(); err != nil {
		_ = db.Close() //nolint:errcheck // migration error takes precedence
		return nil, err
	}
	return s, nil
}

// migrateUp applies every pending migration.
func (s *SQLiteStore) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	m.Log = &migrateLogger{logger: s.logger}
	// m is not closed: closing it would close the shared *sql.DB.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate routes schema: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	s.logger.Debug().Uint("version", version).Bool("dirty", dirty).Msg("Route schema ready")
	return nil
}

// GetRoute returns the snapshot for id, or nil, nil if there is no such
// route.
func (s *SQLiteStore) GetRoute(ctx context.Context, id int64) (*predict.RouteSnapshot, error) {
	start := time.Now()
	route, err := s.getRoute(ctx, id)
	metrics.RecordRouteQuery("get_route", time.Since(start), err)
	return route, err
}

func (s *SQLiteStore) getRoute(ctx context.Context, id int64) (*predict.RouteSnapshot, error) {
	var (
		routeID   int64
		distance  sql.NullFloat64
		elevation sql.NullFloat64
		sidewalks sql.NullBool
		lit       sql.NullBool
		surface   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, selectRoute, id).Scan(&routeID, &distance, &elevation, &sidewalks, &lit, &surface)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query route %d: %w", id, err)
	}

	route := &predict.RouteSnapshot{ID: routeID}
	if distance.Valid {
		route.Distance = &distance.Float64
	}
	if elevation.Valid {
		route.ElevationGain = &elevation.Float64
	}
	if sidewalks.Valid {
		route.HasSidewalks = &sidewalks.Bool
	}
	if lit.Valid {
		route.IsLit = &lit.Bool
	}
	if surface.Valid {
		route.SurfaceType = predict.NormalizeSurface(surface.String)
	}
	return route, nil
}

// PutRoute inserts or replaces the scored attributes of a route. Nil
// fields are stored as NULL.
func (s *SQLiteStore) PutRoute(ctx context.Context, route *predict.RouteSnapshot) error {
	start := time.Now()
	surface := route.SurfaceType
	if surface == "" {
		surface = predict.SurfaceAsphalt
	}
	_, err := s.db.ExecContext(ctx, upsertRoute,
		route.ID,
		nullable(route.Distance),
		nullable(route.ElevationGain),
		nullable(route.HasSidewalks),
		nullable(route.IsLit),
		string(surface),
	)
	metrics.RecordRouteQuery("put_route", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert route %d: %w", route.ID, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nullable turns a nil pointer into a SQL NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// migrateLogger adapts zerolog to migrate.Logger.
type migrateLogger struct {
	logger zerolog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
