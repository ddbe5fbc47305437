package repository

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound signals that nothing is stored under the requested key.
var ErrKeyNotFound = errors.New("key not found")

// KVStore holds raw values under string keys. The session guard keeps the
// operator's session in one.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type redisKVStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisKVStore returns a Redis-backed KVStore. Keys are namespaced with prefix.
func NewRedisKVStore(rdb *redis.Client, prefix string) KVStore {
	return &redisKVStore{rdb: rdb, prefix: prefix}
}

func (s *redisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return val, nil
}

func (s *redisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.prefix+key, value, ttl).Err()
}

func (s *redisKVStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

type memoryKVStore struct {
	cache *gocache.Cache
}

// NewMemoryKVStore returns a process-local KVStore, used when Redis is not configured.
func NewMemoryKVStore() KVStore {
	return &memoryKVStore{cache: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (s *memoryKVStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v.([]byte)...), nil
}

// A ttl of zero or less keeps the value until it is deleted.
func (s *memoryKVStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *memoryKVStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
