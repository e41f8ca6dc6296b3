// Package sqlite persists fitted rating curves, one row per station, year
// and gate regime.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/streamflow-engine/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS rating_curves (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	station TEXT NOT NULL,
	year INTEGER NOT NULL,
	curve_type TEXT NOT NULL,
	a REAL NOT NULL,
	b REAL NOT NULL,
	h0 REAL NOT NULL,
	h_min REAL NOT NULL,
	h_max REAL NOT NULL,
	r_squared REAL NOT NULL,
	rmse REAL NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(station, year, curve_type)
);
CREATE INDEX IF NOT EXISTS idx_rating_curves_station ON rating_curves(station);`

// Registry stores rating curves in a SQLite database.
type Registry struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the registry at path. ":memory:" gives a
// private in-memory registry.
func Open(path string, logger *slog.Logger) (*Registry, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create registry directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rating_curves table: %w", err)
	}

	logger.Info("rating-curve registry opened", "path", path)
	return &Registry{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

// CheckReadiness pings the database.
func (r *Registry) CheckReadiness(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("rating-curve registry: %w", err)
	}
	return nil
}

// SaveCurve inserts a curve, replacing any curve already stored for the
// same station, year and curve type.
func (r *Registry) SaveCurve(ctx context.Context, c domain.RatingCurve) error {
	if c.Station == "" {
		return fmt.Errorf("%w: curve has no station", domain.ErrInvalidParameter)
	}
	if c.CurveType == "" {
		c.CurveType = domain.CurveOpen
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rating_curves(station, year, curve_type, a, b, h0, h_min, h_max, r_squared, rmse, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station, year, curve_type) DO UPDATE SET
		a=excluded.a,
		b=excluded.b,
		h0=excluded.h0,
		h_min=excluded.h_min,
		h_max=excluded.h_max,
		r_squared=excluded.r_squared,
		rmse=excluded.rmse,
		updated_at=excluded.updated_at`,
		c.Station, c.Year, string(c.CurveType), c.A, c.B, c.H0, c.HMin, c.HMax, c.RSquared, c.RMSE, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save curve %s/%d/%s: %w", c.Station, c.Year, c.CurveType, err)
	}

	r.logger.Debug("rating curve saved", "station", c.Station, "year", c.Year, "curve_type", c.CurveType)
	return nil
}

// ListCurves returns every curve stored for a station, newest year first.
func (r *Registry) ListCurves(ctx context.Context, station string) ([]domain.RatingCurve, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT station, year, curve_type, a, b, h0, h_min, h_max, r_squared, rmse
		FROM rating_curves
		WHERE station = ?
		ORDER BY year DESC, curve_type`, station)
	if err != nil {
		return nil, fmt.Errorf("query curves for %s: %w", station, err)
	}
	defer rows.Close()

	var curves []domain.RatingCurve
	for rows.Next() {
		var (
			c         domain.RatingCurve
			curveType string
		)
		if err := rows.Scan(&c.Station, &c.Year, &curveType, &c.A, &c.B, &c.H0, &c.HMin, &c.HMax, &c.RSquared, &c.RMSE); err != nil {
			return nil, fmt.Errorf("scan curve row: %w", err)
		}
		c.CurveType = domain.CurveType(curveType)
		curves = append(curves, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate curve rows: %w", err)
	}
	return curves, nil
}
