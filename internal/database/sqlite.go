// Package database provides SQLite persistence for user identities and
// refresh tokens.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// ensures the schema exists. ":memory:" yields a private in-memory store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", buildDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	// a single connection serializes writers and keeps an in-memory
	// database alive for the life of the store
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database schema: couldn't enable foreign keys: %v", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database: %v", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func buildDSN(dbPath string) string {
	if dbPath == ":memory:" || strings.HasPrefix(dbPath, "file:") {
		return dbPath
	}
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func initSchema(db *sql.DB) error {
	if err := initTable(db, "users", `
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			email       TEXT NOT NULL UNIQUE,
			google_id   TEXT NOT NULL UNIQUE,
			role        TEXT NOT NULL DEFAULT 'user'
			            CHECK (role IN ('user', 'admin')),
			created_at  INTEGER NOT NULL
		);`,
	); err != nil {
		return err
	}

	if err := initTable(db, "refresh_tokens", `
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			id          INTEGER PRIMARY KEY,
			owner       TEXT NOT NULL,
			token       TEXT NOT NULL UNIQUE,
			expiration  INTEGER NOT NULL,
			created_at  INTEGER NOT NULL,
			FOREIGN KEY (owner) REFERENCES users (id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS refresh_tokens_owner ON refresh_tokens (owner);
		CREATE INDEX IF NOT EXISTS refresh_tokens_expiration ON refresh_tokens (expiration);`,
	); err != nil {
		return err
	}

	return nil
}

func initTable(
	db *sql.DB,
	name string,
	sql string,
) error {
	if _, err := db.Exec(sql); err != nil {
		return fmt.Errorf("failed to init '%s' table schema: %v", name, err)
	}
	return nil
}

func resultsEmpty(result sql.Result) bool {
	count, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return count == 0
}
