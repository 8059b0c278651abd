package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/okian/nebula/internal/domain/model"
)

const (
	sqliteStoreLabel = "sqlite"
	migrationsTable  = "schema_migrations"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// OpenSQLite opens (or creates) the database at path, applies pragmas and
// runs pending migrations.
func OpenSQLite(path string, opts ...Option) (*sql.DB, error) {
	cfg := sqliteConfig{
		maxOpenConns:  1,
		busyTimeoutMS: 5000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	// Single writer keeps SQLITE_BUSY away from concurrent submissions.
	db.SetMaxOpenConns(cfg.maxOpenConns)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.busyTimeoutMS),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q on %s: %w", p, path, err)
		}
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: %w", ErrNilDB)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: init source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("migrate: init db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate: init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}

// SQLiteScoreStore persists scores in the scores table.
type SQLiteScoreStore struct {
	db *sql.DB
}

// NewSQLiteScoreStore wraps an opened, migrated database.
func NewSQLiteScoreStore(db *sql.DB) *SQLiteScoreStore {
	return &SQLiteScoreStore{db: db}
}

// Put inserts e.
func (s *SQLiteScoreStore) Put(ctx context.Context, e model.ScoreEntry) error {
	defer observe(sqliteStoreLabel, "put", time.Now())
	if e.ID == "" {
		return ErrEmptyID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (id, user_id, user_name, score, timestamp_ms) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.UserName, e.Score, e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert score %s: %w", e.ID, err)
	}
	return nil
}

// Scan reads the whole table.
func (s *SQLiteScoreStore) Scan(ctx context.Context) ([]model.ScoreEntry, error) {
	defer observe(sqliteStoreLabel, "scan", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, user_name, score, timestamp_ms FROM scores`)
	if err != nil {
		return nil, fmt.Errorf("scan scores: %w", err)
	}
	defer rows.Close()

	var out []model.ScoreEntry
	for rows.Next() {
		var e model.ScoreEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Score, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return out, nil
}

// Delete removes the row with id.
func (s *SQLiteScoreStore) Delete(ctx context.Context, id string) error {
	defer observe(sqliteStoreLabel, "delete", time.Now())
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scores WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete score %s: %w", id, err)
	}
	return nil
}

// SQLiteConnectionStore persists connection records in the connections table.
type SQLiteConnectionStore struct {
	db *sql.DB
}

// NewSQLiteConnectionStore wraps an opened, migrated database.
func NewSQLiteConnectionStore(db *sql.DB) *SQLiteConnectionStore {
	return &SQLiteConnectionStore{db: db}
}

// Register upserts rec.
func (s *SQLiteConnectionStore) Register(ctx context.Context, rec model.ConnectionRecord) error {
	defer observe(sqliteStoreLabel, "register", time.Now())
	if rec.ConnectionID == "" {
		return ErrEmptyID
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO connections (connection_id, user_id, connected_at_ms) VALUES (?, ?, ?)
ON CONFLICT(connection_id) DO UPDATE SET
	user_id = excluded.user_id,
	connected_at_ms = excluded.connected_at_ms`,
		rec.ConnectionID, rec.UserID, rec.ConnectedAt)
	if err != nil {
		return fmt.Errorf("register connection %s: %w", rec.ConnectionID, err)
	}
	return nil
}

// ListAll reads the whole table.
func (s *SQLiteConnectionStore) ListAll(ctx context.Context) ([]model.ConnectionRecord, error) {
	defer observe(sqliteStoreLabel, "list", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT connection_id, user_id, connected_at_ms FROM connections`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var out []model.ConnectionRecord
	for rows.Next() {
		var rec model.ConnectionRecord
		if err := rows.Scan(&rec.ConnectionID, &rec.UserID, &rec.ConnectedAt); err != nil {
			return nil, fmt.Errorf("scan connection row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return out, nil
}

// Evict deletes the record for connectionID; absent IDs are ignored.
func (s *SQLiteConnectionStore) Evict(ctx context.Context, connectionID string) error {
	defer observe(sqliteStoreLabel, "evict", time.Now())
	if _, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE connection_id = ?`, connectionID); err != nil {
		return fmt.Errorf("evict connection %s: %w", connectionID, err)
	}
	return nil
}
