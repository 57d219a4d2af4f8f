package migrations

import (
	"context"
	"database/sql"
)

// CacheMigrations returns the schema history of the cache store
func CacheMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_cache_entries",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, `
					CREATE TABLE IF NOT EXISTS cache_entries (
						key TEXT PRIMARY KEY,
						value TEXT NOT NULL,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
					)
				`)
				return err
			},
		},
	}
}
