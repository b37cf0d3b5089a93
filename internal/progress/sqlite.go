package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/rshade/rowprompt/internal/table"
)

//nolint:gochecknoglobals // schema statements, applied in order
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS processed_rows (
		row_id      INTEGER NOT NULL,
		recorded_at TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_processed_rows_row_id ON processed_rows(row_id)`,
}

// SQLiteStore keeps identifiers in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite progress store requires a path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, pragmaErr := db.ExecContext(ctx, pragma); pragmaErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, pragmaErr)
		}
	}
	for _, stmt := range sqliteSchema {
		if _, schemaErr := db.ExecContext(ctx, stmt); schemaErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating sqlite schema: %w", schemaErr)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Load returns every recorded identifier.
func (s *SQLiteStore) Load(ctx context.Context) (table.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT row_id FROM processed_rows`)
	if err != nil {
		return nil, fmt.Errorf("querying processed rows: %w", err)
	}
	defer rows.Close()

	ids := make(table.IDSet)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("scanning processed row: %w", scanErr)
		}
		ids.Add(id)
	}
	return ids, rows.Err()
}

// Record inserts id.
func (s *SQLiteStore) Record(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_rows (row_id, recorded_at) VALUES (?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording row %d: %w", id, err)
	}
	return nil
}

// Reset deletes all identifiers.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM processed_rows`); err != nil {
		return fmt.Errorf("clearing processed rows: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
