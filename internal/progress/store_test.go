package progress

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory returns a fresh, empty store for one subtest.
type storeFactory func(t *testing.T) Store

// testStoreContract exercises the behavior every backend must share.
func testStoreContract(t *testing.T, newStore storeFactory) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty store loads empty set", func(t *testing.T) {
		s := newStore(t)
		ids, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("record then load", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Record(ctx, 3))
		require.NoError(t, s.Record(ctx, 7))
		require.NoError(t, s.Record(ctx, 3))

		ids, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, 2)
		assert.True(t, ids.Has(3))
		assert.True(t, ids.Has(7))
	})

	t.Run("reset is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Record(ctx, 1))

		require.NoError(t, s.Reset(ctx))
		ids, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		require.NoError(t, s.Reset(ctx))
		ids, err = s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("concurrent records are not lost", func(t *testing.T) {
		s := newStore(t)
		const n = 100
		const workers = 6

		jobs := make(chan int)
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for id := range jobs {
					if err := s.Record(ctx, id); err != nil {
						errs <- err
					}
				}
			}()
		}
		for i := range n {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		ids, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, n)
		for i := range n {
			assert.True(t, ids.Has(i), "missing id %d", i)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})

	t.Run("entries keep duplicates", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Record(context.Background(), 1))
		require.NoError(t, s.Record(context.Background(), 1))
		assert.Equal(t, []int{1, 1}, s.Entries())
	})
}

func TestFileStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "state", "processed_ids.jsonl"))
		require.NoError(t, err)
		return s
	})

	ctx := context.Background()

	t.Run("survives reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ids.jsonl")
		first, err := NewFileStore(path)
		require.NoError(t, err)
		require.NoError(t, first.Record(ctx, 42))

		second, err := NewFileStore(path)
		require.NoError(t, err)
		ids, err := second.Load(ctx)
		require.NoError(t, err)
		assert.True(t, ids.Has(42))
	})

	t.Run("torn trailing line is skipped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ids.jsonl")
		content := `{"row_id":1,"recorded_at":"2025-01-01T00:00:00Z"}` + "\n" + `{"row_id":2,"rec`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		s, err := NewFileStore(path)
		require.NoError(t, err)
		ids, err := s.Load(ctx)
		require.NoError(t, err)
		assert.True(t, ids.Has(1))
		assert.False(t, ids.Has(2))
	})

	t.Run("corrupted interior line", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ids.jsonl")
		content := "garbage\n" + `{"row_id":1,"recorded_at":"2025-01-01T00:00:00Z"}` + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		s, err := NewFileStore(path)
		require.NoError(t, err)
		_, err = s.Load(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStoreCorrupted))
	})

	t.Run("lock released after load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ids.jsonl")
		s, err := NewFileStore(path)
		require.NoError(t, err)
		_, err = s.Load(ctx)
		require.NoError(t, err)
		_, statErr := os.Stat(s.lockFilePath())
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("default path", func(t *testing.T) {
		s, err := NewFileStore("")
		require.NoError(t, err)
		assert.Contains(t, s.Path(), "processed_ids.jsonl")
	})
}

func TestSQLiteStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "progress.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})

	t.Run("requires path", func(t *testing.T) {
		_, err := OpenSQLiteStore(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("ROWPROMPT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROWPROMPT_TEST_REDIS_ADDR not set")
	}
	testStoreContract(t, func(t *testing.T) Store {
		s, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr, Key: "rowprompt:test:" + t.Name()})
		require.NoError(t, err)
		require.NoError(t, s.Reset(context.Background()))
		t.Cleanup(func() {
			_ = s.Reset(context.Background())
			_ = s.Close()
		})
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ROWPROMPT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ROWPROMPT_TEST_POSTGRES_DSN not set")
	}
	testStoreContract(t, func(t *testing.T) Store {
		s, err := OpenPostgresStore(context.Background(), dsn)
		require.NoError(t, err)
		require.NoError(t, s.Reset(context.Background()))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := Open(ctx, Config{Backend: "MEMORY"})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("file by default", func(t *testing.T) {
		s, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "x.jsonl")})
		require.NoError(t, err)
		assert.IsType(t, &FileStore{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(ctx, Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "p.db")})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		assert.IsType(t, &SQLiteStore{}, s)
	})

	t.Run("unknown backend", func(t *testing.T) {
		s, err := Open(ctx, Config{Backend: "etcd"})
		assert.Nil(t, s)
		assert.True(t, errors.Is(err, ErrUnknownBackend))
	})

	t.Run("redis without address", func(t *testing.T) {
		s, err := Open(ctx, Config{Backend: BackendRedis})
		assert.Nil(t, s)
		assert.Error(t, err)
	})
}
