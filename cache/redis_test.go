//go:build integration

package cache

import (
	"os"
	"sort"
	"testing"

	"github.com/redis/go-redis/v9"
)

// Needs a running Redis; set REDIS_ADDR and run with -tags integration.
func redisProvider(t *testing.T) RedisCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	p := NewRedisCache(client)
	t.Cleanup(func() {
		p.PurgeGeneration("v1")
		p.PurgeGeneration("v2")
		client.Close()
	})
	return p
}

func TestRedisRoundtrip(t *testing.T) {
	p := redisProvider(t)
	if err := p.Put("v1", "GET:/a", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	bytes, ok, err := p.Get("v1", "GET:/a")
	if err != nil || !ok || string(bytes) != "hello" {
		t.Fatalf("ok=%v err=%v bytes=%s", ok, err, bytes)
	}
}

func TestRedisGenerationsAndPurge(t *testing.T) {
	p := redisProvider(t)
	p.Put("v1", "GET:/a", []byte("x"))
	p.Put("v2", "GET:/a", []byte("y"))

	generations, err := p.Generations()
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(generations)
	if len(generations) != 2 || generations[0] != "v1" || generations[1] != "v2" {
		t.Fatalf("Generations: %v", generations)
	}

	if err := p.PurgeGeneration("v1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get("v1", "GET:/a"); ok {
		t.Fatal("Purged entry still present")
	}
	if _, ok, _ := p.Get("v2", "GET:/a"); !ok {
		t.Fatal("Other generation was purged too")
	}
}

func TestRedisKeys(t *testing.T) {
	p := redisProvider(t)
	p.Put("v1", "GET:/a", []byte("x"))
	p.Put("v1", "POST:/b", []byte("y"))

	keys := make([]string, 0)
	if err := p.Keys("v1", "GET:", func(key string) {
		keys = append(keys, key)
	}); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "GET:/a" {
		t.Fatalf("Keys: %v", keys)
	}
}
