package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jbweber/homelab/ploi/internal/migrations"
	_ "modernc.org/sqlite"
)

// Store is a flat, durable string-keyed map. There is no TTL and no eviction.
type Store interface {
	// Get returns the value stored under key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	// The write is visible to the next Get of the same key.
	Set(ctx context.Context, key, value string) error

	// GetAll returns every stored entry
	GetAll(ctx context.Context) (map[string]string, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Clear removes every entry
	Clear(ctx context.Context) error
}

const (
	getQuery    = "SELECT value FROM cache_entries WHERE key = ?"
	setQuery    = "INSERT INTO cache_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at"
	getAllQuery = "SELECT key, value FROM cache_entries ORDER BY key ASC"
	deleteQuery = "DELETE FROM cache_entries WHERE key = ?"
	clearQuery  = "DELETE FROM cache_entries"
)

// Datastore is a Store backed by a SQLite table
type Datastore struct {
	DB    *sql.DB
	stmts *PreparedStatementCache
}

// New opens the SQLite database at dsn and runs migrations.
func New(ctx context.Context, dsn string) (*Datastore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ds, err := NewWithDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return ds, nil
}

// NewWithDB wraps an already configured database and runs migrations.
func NewWithDB(ctx context.Context, db *sql.DB) (*Datastore, error) {
	if err := migrations.Run(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Datastore{DB: db, stmts: NewPreparedStatementCache(db)}, nil
}

// Get retrieves the value stored under key.
func (ds *Datastore) Get(ctx context.Context, key string) (string, bool, error) {
	stmt, err := ds.stmts.Get(ctx, getQuery)
	if err != nil {
		return "", false, err
	}
	var value string
	if err := stmt.QueryRowContext(ctx, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get cache entry %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (ds *Datastore) Set(ctx context.Context, key, value string) error {
	stmt, err := ds.stmts.Get(ctx, setQuery)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("failed to set cache entry %q: %w", key, err)
	}
	return nil
}

// GetAll returns every entry in the cache.
func (ds *Datastore) GetAll(ctx context.Context) (map[string]string, error) {
	stmt, err := ds.stmts.Get(ctx, getAllQuery)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	entries := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	return entries, nil
}

// Delete removes the entry stored under key.
func (ds *Datastore) Delete(ctx context.Context, key string) error {
	stmt, err := ds.stmts.Get(ctx, deleteQuery)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("failed to delete cache entry %q: %w", key, err)
	}
	return nil
}

// Clear removes every entry.
func (ds *Datastore) Clear(ctx context.Context) error {
	if _, err := ds.DB.ExecContext(ctx, clearQuery); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Close releases prepared statements and the database handle.
func (ds *Datastore) Close() error {
	stmtErr := ds.stmts.Close()
	if err := ds.DB.Close(); err != nil {
		return err
	}
	return stmtErr
}
