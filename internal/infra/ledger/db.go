// Package ledger is the optional append-only record of completed
// simulation runs: per-run material flow outcomes and the winner history
// behind them, kept for post-hoc operator inspection across repeated
// `fleetctl simulate` invocations. It never feeds back into a running
// simulation's state -- a run that never enables config.LedgerConfig never
// touches this package.
package ledger

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection holding the ledger schema.
type DB struct {
	db *sql.DB
}

// migrations are applied in order, each a single statement (SQLite
// executes one at a time through database/sql).
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		flow_id      TEXT NOT NULL,
		allocator    TEXT NOT NULL,
		task_count   INTEGER NOT NULL,
		started_at   TEXT NOT NULL,
		finished_at  TEXT,
		outcome      TEXT NOT NULL DEFAULT 'running',
		error        TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS task_outcomes (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id          INTEGER NOT NULL REFERENCES runs(id),
		task_id         TEXT NOT NULL,
		winner          TEXT NOT NULL,
		makespan_ms     REAL NOT NULL,
		empty_travel_ms REAL NOT NULL,
		loaded_travel_ms REAL NOT NULL,
		action_ms       REAL NOT NULL,
		UNIQUE(run_id, task_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_outcomes_run ON task_outcomes(run_id)`,
}

// Open opens (creating if absent) the ledger database file "ledger.db"
// inside dir and applies every migration.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "ledger.db")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	db := &DB{db: sqlDB}
	for _, stmt := range migrations {
		if _, err := sqlDB.Exec(stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("ledger: migrate: %w", err)
		}
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error { return db.db.Close() }
