package fragmentation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS fragmentation_state (
	name        TEXT PRIMARY KEY,
	uncompacted INTEGER NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const sqliteSchema = `CREATE TABLE IF NOT EXISTS fragmentation_state (
	name        TEXT PRIMARY KEY,
	uncompacted INTEGER NOT NULL,
	updated_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Postgres keeps one row per index name in fragmentation_state.
type Postgres struct {
	db   *postgres.Client
	name string
}

// NewPostgres creates the state table if needed.
func NewPostgres(ctx context.Context, db *postgres.Client, name string) (*Postgres, error) {
	if err := db.Migrate(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("creating fragmentation_state: %w", err)
	}
	return &Postgres{db: db, name: name}, nil
}

func (p *Postgres) Store(ctx context.Context, count int) error {
	_, err := p.db.DB.ExecContext(ctx,
		`INSERT INTO fragmentation_state (name, uncompacted, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET uncompacted = EXCLUDED.uncompacted, updated_at = now()`,
		p.name, count,
	)
	if err != nil {
		return fmt.Errorf("storing fragmentation state for %s: %w", p.name, err)
	}
	return nil
}

func (p *Postgres) Retrieve(ctx context.Context) (int, bool, error) {
	return scanCount(p.db.DB.QueryRowContext(ctx,
		`SELECT uncompacted FROM fragmentation_state WHERE name = $1`, p.name), p.name)
}

// SQLite keeps the same table in a local database file.
type SQLite struct {
	db   *sql.DB
	name string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path, name string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating fragmentation_state in %s: %w", path, err)
	}
	return &SQLite{db: db, name: name}, nil
}

func (s *SQLite) Store(ctx context.Context, count int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fragmentation_state (name, uncompacted, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (name) DO UPDATE SET uncompacted = excluded.uncompacted, updated_at = CURRENT_TIMESTAMP`,
		s.name, count,
	)
	if err != nil {
		return fmt.Errorf("storing fragmentation state for %s: %w", s.name, err)
	}
	return nil
}

func (s *SQLite) Retrieve(ctx context.Context) (int, bool, error) {
	return scanCount(s.db.QueryRowContext(ctx,
		`SELECT uncompacted FROM fragmentation_state WHERE name = ?`, s.name), s.name)
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

func scanCount(row *sql.Row, name string) (int, bool, error) {
	var n int
	err := row.Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("loading fragmentation state for %s: %w", name, err)
	}
	return n, true, nil
}
