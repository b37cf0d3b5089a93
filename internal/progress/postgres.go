package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rshade/rowprompt/internal/table"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rowprompt_processed_rows (
	row_id      BIGINT      NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps identifiers in a Postgres table shared by every
// process of a deployment.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects with dsn and ensures the table exists.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres progress store requires a DSN")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", pingErr)
	}
	if _, schemaErr := pool.Exec(ctx, postgresSchema); schemaErr != nil {
		pool.Close()
		return nil, fmt.Errorf("creating progress table: %w", schemaErr)
	}
	return &PostgresStore{pool: pool}, nil
}

// Load returns every recorded identifier.
func (s *PostgresStore) Load(ctx context.Context) (table.IDSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT row_id FROM rowprompt_processed_rows`)
	if err != nil {
		return nil, fmt.Errorf("querying processed rows: %w", err)
	}
	defer rows.Close()

	ids := make(table.IDSet)
	for rows.Next() {
		var id int64
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("scanning processed row: %w", scanErr)
		}
		ids.Add(int(id))
	}
	return ids, rows.Err()
}

// Record inserts id.
func (s *PostgresStore) Record(ctx context.Context, id int) error {
	if _, err := s.pool.Exec(ctx, `INSERT INTO rowprompt_processed_rows (row_id) VALUES ($1)`, int64(id)); err != nil {
		return fmt.Errorf("recording row %d: %w", id, err)
	}
	return nil
}

// Reset deletes all identifiers.
func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rowprompt_processed_rows`); err != nil {
		return fmt.Errorf("clearing processed rows: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
