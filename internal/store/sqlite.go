// Package store persists login credentials in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/soyeahso/matchchat/internal/logging"
)

// DB is the session database. It only ever holds credentials, so the
// schema version lives in PRAGMA user_version instead of a bookkeeping table.
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// Open opens (or creates) the session database at path and brings its
// schema up to date. Use ":memory:" for a throwaway database.
func Open(path string, log *logging.Logger) (*DB, error) {
	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating session directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn(path, inMemory))
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	if inMemory {
		// every pooled connection would otherwise see its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{sql: sqlDB, log: log.Sub("store")}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// dsn applies the connection pragmas on every pooled connection.
func dsn(path string, inMemory bool) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	if !inMemory {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.sql.Close()
}

// SchemaVersion reports the last applied migration.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	if err := db.sql.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// migrate applies every migration newer than user_version in one
// transaction, so a failed upgrade leaves the credentials untouched.
func (db *DB) migrate() error {
	current, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	latest := migrations[len(migrations)-1].Version
	if current >= latest {
		return nil
	}

	tx, err := db.sql.Begin()
	if err != nil {
		return fmt.Errorf("starting schema upgrade: %w", err)
	}
	defer tx.Rollback()

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("upgrading session schema")
		if _, err := tx.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	// PRAGMA does not accept bound parameters
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", latest)); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema upgrade: %w", err)
	}
	return nil
}
