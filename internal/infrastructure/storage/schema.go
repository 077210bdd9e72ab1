package storage

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

type dialect struct {
	driver      string
	placeholder sq.PlaceholderFormat
	schema      []string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return dialect{driver: driver, placeholder: sq.Question, schema: sqliteSchema}, nil
	case DriverPostgres:
		return dialect{driver: driver, placeholder: sq.Dollar, schema: postgresSchema}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS candidates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		town TEXT NOT NULL DEFAULT '',
		county TEXT NOT NULL DEFAULT '',
		acres REAL NOT NULL DEFAULT 0,
		bldg_sqft REAL NOT NULL DEFAULT 0,
		land_use TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_town ON candidates(town)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_lat_lon ON candidates(lat, lon)`,
	`CREATE TABLE IF NOT EXISTS signals (
		candidate_id INTEGER NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
		signal_type TEXT NOT NULL,
		signal_value TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		observed_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_candidate_id ON signals(candidate_id)`,
	`CREATE TABLE IF NOT EXISTS scores (
		candidate_id INTEGER NOT NULL PRIMARY KEY REFERENCES candidates(id) ON DELETE CASCADE,
		score_total INTEGER NOT NULL,
		score_breakdown TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_total ON scores(score_total)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS candidates (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		town TEXT NOT NULL DEFAULT '',
		county TEXT NOT NULL DEFAULT '',
		acres DOUBLE PRECISION NOT NULL DEFAULT 0,
		bldg_sqft DOUBLE PRECISION NOT NULL DEFAULT 0,
		land_use TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_town ON candidates(town)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_lat_lon ON candidates(lat, lon)`,
	`CREATE TABLE IF NOT EXISTS signals (
		candidate_id BIGINT NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
		signal_type TEXT NOT NULL,
		signal_value TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		observed_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_candidate_id ON signals(candidate_id)`,
	`CREATE TABLE IF NOT EXISTS scores (
		candidate_id BIGINT NOT NULL PRIMARY KEY REFERENCES candidates(id) ON DELETE CASCADE,
		score_total INTEGER NOT NULL,
		score_breakdown TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_total ON scores(score_total)`,
}
