package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key layout.
// The registry set holds namespace names; each namespace is one hash
// mapping Key.String() to a JSON-encoded Entry.
const (
	DefaultRedisPrefix = "edgeup:caches"
)

// RedisStorage handles namespace storage with a Redis backend.
type RedisStorage struct {
	redis  *redis.Client
	prefix string
	logger zerolog.Logger
}

// Verify interface implementation
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis-backed storage.
// An empty prefix selects DefaultRedisPrefix.
func NewRedisStorage(redisClient *redis.Client, prefix string, logger zerolog.Logger) *RedisStorage {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStorage{
		redis:  redisClient,
		prefix: strings.TrimSuffix(prefix, ":"),
		logger: logger,
	}
}

func (s *RedisStorage) registryKey() string {
	return s.prefix + ":names"
}

func (s *RedisStorage) namespaceKey(name string) string {
	return s.prefix + ":ns:" + name
}

// Open registers the namespace and returns a handle to it.
func (s *RedisStorage) Open(ctx context.Context, name string) (Namespace, error) {
	if name == "" {
		return nil, fmt.Errorf("namespace name cannot be empty")
	}
	if err := s.redis.SAdd(ctx, s.registryKey(), name).Err(); err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("redis sadd: %w", err)
	}
	return &redisNamespace{storage: s, name: name, key: s.namespaceKey(name)}, nil
}

// Names lists registered namespaces, sorted.
func (s *RedisStorage) Names(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, s.registryKey()).Result()
	if err != nil {
		CacheErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Drop removes the namespace hash and its registry entry atomically.
func (s *RedisStorage) Drop(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, s.registryKey(), name)
		pipe.Del(ctx, s.namespaceKey(name))
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("drop").Inc()
		return false, fmt.Errorf("redis drop namespace: %w", err)
	}

	existed := removed.Val() > 0
	s.logger.Debug().Str("namespace", name).Bool("existed", existed).Msg("Dropped namespace")
	return existed, nil
}

// Close closes the underlying Redis client.
func (s *RedisStorage) Close() error {
	return s.redis.Close()
}

type redisNamespace struct {
	storage *RedisStorage
	name    string
	key     string
}

func (n *redisNamespace) Name() string {
	return n.name
}

// Match retrieves an entry by key.
func (n *redisNamespace) Match(ctx context.Context, key Key) (*Entry, error) {
	data, err := n.storage.redis.HGet(ctx, n.key, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			recordMatch(n.name, ErrCacheMiss)
			return nil, ErrCacheMiss
		}
		recordMatch(n.name, err)
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	recordMatch(n.name, nil)
	return &entry, nil
}

// Put stores an entry. Entries never expire; the namespace is dropped as a whole.
func (n *redisNamespace) Put(ctx context.Context, key Key, entry *Entry) error {
	if err := checkPut(key, entry); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := n.storage.redis.HSet(ctx, n.key, key.String(), data).Err(); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}

	CacheWrittenBytes.WithLabelValues(n.name).Add(float64(entry.Size()))
	return nil
}

// Delete removes a cache entry.
func (n *redisNamespace) Delete(ctx context.Context, key Key) error {
	if err := n.storage.redis.HDel(ctx, n.key, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func (n *redisNamespace) Keys(ctx context.Context) ([]Key, error) {
	fields, err := n.storage.redis.HKeys(ctx, n.key).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(fields)

	keys := make([]Key, 0, len(fields))
	for _, field := range fields {
		key, err := ParseKey(field)
		if err != nil {
			CacheErrors.WithLabelValues("keys").Inc()
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
