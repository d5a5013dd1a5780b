// Package runstore persists a local registry of completed visibility
// computations: one row per run with its full parameter document, grid shape
// and output summary. The registry lets repeated field studies over the same
// DEM be compared without re-reading the rasters.
package runstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/veduta-gis/veduta/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Run is one recorded computation.
type Run struct {
	RunID      string `json:"run_id"`
	Mode       string `json:"mode"` // "direct", "radial" or "refine"
	DEMPath    string `json:"dem_path"`
	OutputPath string `json:"output_path"`
	GridRows   int    `json:"grid_rows"`
	GridCols   int    `json:"grid_cols"`
	ParamsJSON string `json:"params_json"`

	// Output summary over the computed domain
	VisibleMean     float64 `json:"visible_mean"`
	VisibleStddev   float64 `json:"visible_stddev"`
	VisibleMax      float64 `json:"visible_max"`
	VisibleFraction float64 `json:"visible_fraction"`
	ComputedCells   int64   `json:"computed_cells"`

	DurationMS int64 `json:"duration_ms"`
	CreatedAt  int64 `json:"created_at"` // unix nanoseconds
}

// Store wraps the sqlite registry.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the registry at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run registry: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// migrateUp applies all pending schema migrations from the embedded set.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Closing m would close the shared DB connection; let it be collected.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Insert records a completed run. An empty RunID gets a fresh UUID; the
// final id is returned.
func (s *Store) Insert(r *Run) (string, error) {
	if r.RunID == "" {
		r.RunID = uuid.New().String()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (
			run_id, mode, dem_path, output_path, grid_rows, grid_cols,
			params_json, visible_mean, visible_stddev, visible_max,
			visible_fraction, computed_cells, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Mode, r.DEMPath, r.OutputPath, r.GridRows, r.GridCols,
		r.ParamsJSON, r.VisibleMean, r.VisibleStddev, r.VisibleMax,
		r.VisibleFraction, r.ComputedCells, r.DurationMS, r.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	monitoring.Logf("recorded run %s (%s) in registry", r.RunID, r.Mode)
	return r.RunID, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT run_id, mode, dem_path, output_path, grid_rows, grid_cols,
		       params_json, visible_mean, visible_stddev, visible_max,
		       visible_fraction, computed_cells, duration_ms, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(
			&r.RunID, &r.Mode, &r.DEMPath, &r.OutputPath, &r.GridRows, &r.GridCols,
			&r.ParamsJSON, &r.VisibleMean, &r.VisibleStddev, &r.VisibleMax,
			&r.VisibleFraction, &r.ComputedCells, &r.DurationMS, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one run by id, or sql.ErrNoRows.
func (s *Store) Get(runID string) (*Run, error) {
	r := &Run{}
	err := s.db.QueryRow(`
		SELECT run_id, mode, dem_path, output_path, grid_rows, grid_cols,
		       params_json, visible_mean, visible_stddev, visible_max,
		       visible_fraction, computed_cells, duration_ms, created_at
		FROM runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Mode, &r.DEMPath, &r.OutputPath, &r.GridRows, &r.GridCols,
		&r.ParamsJSON, &r.VisibleMean, &r.VisibleStddev, &r.VisibleMax,
		&r.VisibleFraction, &r.ComputedCells, &r.DurationMS, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}
