// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so there is no CGo and no C compiler
// needed to build or cross-compile the server.
//
// SCHEMA MIGRATIONS:
// The schema lives in migrations/*.sql, embedded into the binary and applied by
// golang-migrate on startup. golang-migrate records the applied version in a
// schema_migrations table, so New is safe to call against an existing file.
//
// A single *DB value implements every repository interface. It is created once
// in the composition root (server.New or cmd/seed) and injected everywhere; there
// is no package-level database state.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB

	// now returns the current time. Tests replace it to control created_at
	// ordering without sleeping.
	now func() time.Time
}

// New opens the SQLite database at dbPath and applies pending migrations.
//
// dbPath examples:
//   - "data/tradingpost.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
//
// PRAGMAS IN THE DSN:
// foreign_keys is a per-connection setting in SQLite. Running "PRAGMA
// foreign_keys=ON" once only affects whichever pooled connection happened to
// execute it, so we pass pragmas through the DSN and modernc applies them to
// every new connection.
func New(dbPath string) (*DB, error) {
	memory := dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")

	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !memory {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}

	conn, err := sql.Open("sqlite", dbPath+sep+pragmas)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	// Pinning the pool to one connection keeps the whole app on the same store.
	if memory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}

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

// Ping checks that the database is reachable. Used by the health endpoint.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate applies every embedded migration that has not run yet.
//
// The migrate.Migrate value is deliberately not closed: its Close would close
// the database driver, and the sqlite driver's Close closes the *sql.DB we
// handed it, which the repositories still need.
func (db *DB) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// nullString maps an optional foreign key to a SQL NULL when empty.
func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringPtr is the inverse of nullString for scanned columns.
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
