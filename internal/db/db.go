// Package db is the sqlite persistence layer: the tracked-object record
// store, cycle snapshots, and the notification log.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sql handle so store methods and migrations hang off one type.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// the connection pragmas. Callers normally follow up with MigrateUp.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// WAL keeps the admin API readable while a cycle writes; the busy
	// timeout covers the brief writer overlap that still happens.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	return &DB{DB: sqlDB}, nil
}
