package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces card entries so a shared Redis can host
// other data alongside the cache.
const redisKeyPrefix = "cardfetch:card:"

// RedisStore is a CardStore backed by Redis. Entries carry a
// server-side TTL, so expiry needs no sweeping.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed card store.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{redis: redisClient, ttl: ttl}
}

func redisKey(name string) string {
	return redisKeyPrefix + name
}

// Get implements CardStore.
func (s *RedisStore) Get(ctx context.Context, name string) (Card, error) {
	data, err := s.redis.Get(ctx, redisKey(name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMissesTotal.Inc()
			return Card{}, ErrCacheMiss
		}
		return Card{}, fmt.Errorf("redis get: %w", err)
	}

	var card Card
	if err := json.Unmarshal(data, &card); err != nil {
		return Card{}, fmt.Errorf("unmarshal card entry: %w", err)
	}

	cacheHitsTotal.Inc()
	return card, nil
}

// Set implements CardStore.
func (s *RedisStore) Set(ctx context.Context, card Card) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card entry: %w", err)
	}

	if err := s.redis.Set(ctx, redisKey(card.Name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Len implements CardStore.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// All implements CardStore. Entries are returned sorted by name; Redis
// has no insertion order to preserve.
func (s *RedisStore) All(ctx context.Context) ([]Card, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	cards := make([]Card, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, redisKeyPrefix)
		card, err := s.Get(ctx, name)
		if err == ErrCacheMiss {
			// Expired between scan and read.
			continue
		}
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// Clear implements CardStore.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// keys scans for every card entry key.
func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}
