package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient captures the minimal commands needed from a redis client.
type RedisClient interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisStore keeps values in redis with a TTL refreshed on every write, so
// records disappear once the owning session stops editing.
type RedisStore struct {
	client    RedisClient
	ttl       time.Duration
	keyPrefix string
}

// NewRedisStore builds a store using the provided client and TTL. A zero TTL
// keeps keys until they are deleted.
func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, keyPrefix: "wfcanvas:"}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, ErrStoreUnavailable
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, false, err
	}
	return s.client.Get(ctx, s.keyPrefix+key)
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if s == nil || s.client == nil {
		return ErrStoreUnavailable
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.keyPrefix+key, value, s.ttl)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return ErrStoreUnavailable
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, s.keyPrefix+key)
}

type goRedisClient struct {
	client redis.UniversalClient
}

// NewGoRedisClient adapts a go-redis client to RedisClient.
func NewGoRedisClient(client redis.UniversalClient) RedisClient {
	return goRedisClient{client: client}
}

func (c goRedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c goRedisClient) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c goRedisClient) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
