// Package sqlite implements repository.SubscriberRepository on an embedded
// SQLite database.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain. Use ":memory:" as the path for throwaway databases in tests.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath, applies pragmas, and runs migrations.
//
// dbPath examples:
//   - "data/subscribers.db" → file-based database
//   - ":memory:"            → in-memory database, gone on Close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	if dbPath == memoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a subscribe is writing.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Concurrent writers wait for the lock instead of failing with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates or updates the schema. Every statement is idempotent, so it
// runs on each startup.
func (db *DB) migrate() error {
	// email is UNIQUE: the upsert conflict target and the one-row-per-address guarantee.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS subscribers (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			token      TEXT NOT NULL,
			active     BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_subscribers_token ON subscribers(token);
	`)
	if err != nil {
		return fmt.Errorf("creating subscribers table: %w", err)
	}

	// Partial index keeps the delivery scan cheap once most rows are inactive.
	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_subscribers_active_email
			ON subscribers(email) WHERE active = 1;
	`)
	if err != nil {
		return fmt.Errorf("creating active subscribers index: %w", err)
	}

	return nil
}
