package config

import (
	"database/sql"
	"time"
)

// OptimizeDatabaseConnection sizes the pool for a single-user cache file
func OptimizeDatabaseConnection(db *sql.DB) {
	db.SetMaxOpenConns(1)                   // SQLite allows one writer; avoid SQLITE_BUSY between our own goroutines
	db.SetMaxIdleConns(1)                   // Keep the connection warm between commands
	db.SetConnMaxLifetime(30 * time.Minute) // Recycle for long running `serve`
}

// ApplyPragmaOptimizations applies SQLite-specific pragmas for the cache
func ApplyPragmaOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",   // readers do not block the writer
		"PRAGMA synchronous = NORMAL", // the cache is rebuildable, durability can be relaxed
		"PRAGMA busy_timeout = 5000",  // another ploi process may hold the lock briefly
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}

	return nil
}
