// Package postgres implements the hazard record store backed by PostgreSQL.
// Natural-id uniqueness is enforced by a UNIQUE constraint and resolved with
// INSERT ... ON CONFLICT, so concurrent ingesters never race on a
// check-then-insert.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists hazard records in PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to the database at databaseURL and configures the connection pool.
// It does not apply migrations; call Migrate for that.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection pool. The Store takes ownership of db.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate applies all pending schema migrations and returns the resulting version.
func (s *Store) Migrate() (uint, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return 0, fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return version, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertIfAbsent stores rec unless its natural id already exists.
func (s *Store) InsertIfAbsent(ctx context.Context, rec domain.Record) (bool, error) {
	return execUpsert(ctx, s.db, rec, domain.InsertIfAbsent, s.now().UTC())
}

// UpsertOverwriting stores rec or refreshes the mutable columns of the
// existing row. It reports false when the stored row already matched.
func (s *Store) UpsertOverwriting(ctx context.Context, rec domain.Record) (bool, error) {
	return execUpsert(ctx, s.db, rec, domain.RefreshMutable, s.now().UTC())
}

// List returns the records of kind matching f, newest first.
func (s *Store) List(ctx context.Context, kind domain.Kind, f domain.Filter) ([]domain.Record, error) {
	return queryList(ctx, s.db, kind, f)
}

// Existing returns the subset of ids already stored for kind.
func (s *Store) Existing(ctx context.Context, kind domain.Kind, ids []string) (map[string]bool, error) {
	return queryExisting(ctx, s.db, kind, ids)
}

// Count returns the number of stored records of kind.
func (s *Store) Count(ctx context.Context, kind domain.Kind) (int, error) {
	return queryCount(ctx, s.db, kind)
}
