package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "offline:"

// RedisCache is a cache provider backed by Redis.
// Entries are stored under "offline:<generation>:<key>" so that a whole
// generation can be enumerated and purged with a single scan.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisCache creates a cache provider on top of the given Redis client.
func NewRedisCache(client *redis.Client) RedisCache {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return RedisCache{
		client: client,
		ctx:    context.Background(),
	}
}

func redisKey(generation, key string) string {
	return redisKeyPrefix + generation + ":" + key
}

func (r RedisCache) Get(generation, key string) ([]byte, bool, error) {
	bytes, err := r.client.Get(r.ctx, redisKey(generation, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return bytes, true, nil
}

func (r RedisCache) Put(generation, key string, bytes []byte) error {
	// No TTL: entries live until their generation is purged.
	if err := r.client.Set(r.ctx, redisKey(generation, key), bytes, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r RedisCache) Generations() ([]string, error) {
	seen := make(map[string]struct{})
	iter := r.client.Scan(r.ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(r.ctx) {
		rest := strings.TrimPrefix(iter.Val(), redisKeyPrefix)
		if generation, _, found := strings.Cut(rest, ":"); found {
			seen[generation] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	generations := make([]string, 0, len(seen))
	for generation := range seen {
		generations = append(generations, generation)
	}
	return generations, nil
}

func (r RedisCache) PurgeGeneration(generation string) error {
	iter := r.client.Scan(r.ctx, 0, redisKey(generation, "*"), 0).Iterator()
	for iter.Next(r.ctx) {
		if err := r.client.Del(r.ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

func (r RedisCache) Keys(generation, prefix string, cb func(string)) error {
	iter := r.client.Scan(r.ctx, 0, redisKey(generation, prefix+"*"), 0).Iterator()
	for iter.Next(r.ctx) {
		cb(strings.TrimPrefix(iter.Val(), redisKeyPrefix+generation+":"))
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

func (r RedisCache) Purge(generation, key string) {
	r.client.Del(r.ctx, redisKey(generation, key))
}
