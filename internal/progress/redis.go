package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rshade/rowprompt/internal/table"
)

// DefaultRedisKey is the set holding processed identifiers.
const DefaultRedisKey = "rowprompt:processed_ids"

// RedisConfig locates the Redis set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisStore keeps identifiers in a Redis set so several hosts can share
// progress for one deployment.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis progress store requires an address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreFromClient(client, cfg.Key), nil
}

// NewRedisStoreFromClient wraps an existing client. An empty key selects DefaultRedisKey.
func NewRedisStoreFromClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load returns the members of the set.
func (s *RedisStore) Load(ctx context.Context) (table.IDSet, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	ids := make(table.IDSet, len(members))
	for _, m := range members {
		id, convErr := strconv.Atoi(m)
		if convErr != nil {
			return nil, fmt.Errorf("%w: member %q of %s", ErrStoreCorrupted, m, s.key)
		}
		ids.Add(id)
	}
	return ids, nil
}

// Record adds id to the set.
func (s *RedisStore) Record(ctx context.Context, id int) error {
	if err := s.client.SAdd(ctx, s.key, strconv.Itoa(id)).Err(); err != nil {
		return fmt.Errorf("recording row %d: %w", id, err)
	}
	return nil
}

// Reset deletes the set.
func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("deleting %s: %w", s.key, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
