// internal/store/store.go
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Backend selects the relational engine behind the mirror.
type Backend string

const (
	SQLiteBackend     Backend = "sqlite"
	PostgreSQLBackend Backend = "postgres"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Store is the relational mirror of the metadata log plus the tag tables that
// exist only here. It works against SQLite (the default, a file in the data
// directory) or PostgreSQL through the same SQL with rebinding.
type Store struct {
	db      *sql.DB
	backend Backend
	logger  *slog.Logger
}

// Open connects to the configured backend, verifies the connection and runs
// any pending migrations. For sqlite, connStr is the database file path.
func Open(backend Backend, connStr string, logger *slog.Logger) (*Store, error) {
	var db *sql.DB
	var err error

	switch backend {
	case SQLiteBackend:
		db, err = sql.Open("sqlite", connStr)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database %q: %w", connStr, err)
		}
		// A single connection avoids "database is locked" errors.
		db.SetMaxOpenConns(1)
	case PostgreSQLBackend:
		db, err = sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", backend, err)
	}

	s := &Store{db: db, backend: backend, logger: logger}
	if err := s.migrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	var driver database.Driver
	var err error
	switch s.backend {
	case SQLiteBackend:
		driver, err = migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	case PostgreSQLBackend:
		driver, err = migratepgx.WithInstance(s.db, &migratepgx.Config{})
	}
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+string(s.backend))
	if err != nil {
		return fmt.Errorf("access migrations directory: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "codeharvest", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind converts ?-style placeholders to the $n style postgres expects.
// Queries in this package are written with ? throughout.
func (s *Store) rebind(query string) string {
	if s.backend != PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// containsExpr builds a case-sensitive substring match on a column. SQLite's
// LIKE is case-insensitive for ASCII, so both backends use their position
// function instead.
func (s *Store) containsExpr(col string) string {
	if s.backend == PostgreSQLBackend {
		return "strpos(" + col + ", ?) > 0"
	}
	return "instr(" + col + ", ?) > 0"
}
