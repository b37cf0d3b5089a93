// Package progress persists the identifiers of rows that completed
// processing so interrupted or repeated runs skip them.
//
// Every backend implements Store. Record is an independent append that is
// safe to call from many workers at once; duplicates are harmless because the
// loaded set is only used for membership tests. Reset clears everything and is
// idempotent.
package progress

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rshade/rowprompt/internal/table"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var (
	// ErrStoreCorrupted indicates persisted state exists but cannot be parsed.
	ErrStoreCorrupted = errors.New("progress store corrupted")
	// ErrUnknownBackend is returned by Open for unsupported backends.
	ErrUnknownBackend = errors.New("unknown progress backend")
)

// Store is the durable record of completed row identifiers.
type Store interface {
	// Load returns every recorded identifier. A store with no prior state
	// returns an empty set.
	Load(ctx context.Context) (table.IDSet, error)
	// Record durably appends one identifier.
	Record(ctx context.Context, id int) error
	// Reset removes all identifiers.
	Reset(ctx context.Context) error
	// Close releases resources held by the store.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Path is the file or database location for file and sqlite backends.
	Path string
	// DSN is the Postgres connection string.
	DSN string
	// RedisAddr and RedisKey locate the Redis set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// DefaultPath returns the well-known file store location under the user's home.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".rowprompt", "processed_ids.jsonl"), nil
}

// Open builds the Store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case BackendFile, "":
		store, err = asStore(NewFileStore(cfg.Path))
	case BackendMemory:
		store = NewMemoryStore()
	case BackendSQLite:
		store, err = asStore(OpenSQLiteStore(ctx, cfg.Path))
	case BackendRedis:
		store, err = asStore(NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		}))
	case BackendPostgres:
		store, err = asStore(OpenPostgresStore(ctx, cfg.DSN))
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// asStore converts a concrete constructor result without leaking a typed nil.
func asStore[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
