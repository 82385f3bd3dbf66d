package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestConfig for unit tests - requires Redis running on localhost:6379
const testRedisAddr = "localhost:6379"

// setupTestCache creates a cache instance for testing.
// Returns the cache and a cleanup function.
func setupTestCache(t *testing.T, prefix string) (*Cache, func()) {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: testRedisAddr,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	cleanupKeys(ctx, client, prefix+"*")

	cache := New(client, prefix, 5*time.Minute)

	cleanup := func() {
		cleanupKeys(ctx, client, prefix+"*")
		client.Close()
	}

	return cache, cleanup
}

// cleanupKeys removes all keys matching the pattern.
func cleanupKeys(ctx context.Context, client *redis.Client, pattern string) {
	var cursor uint64
	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
}

type iceEntry struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
}

// storeContract runs the behavior every Store must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		want := iceEntry{URLs: []string{"turn:turn.example.com:3478"}, Username: "1700000000:alice", Credential: "c2VjcmV0"}
		if err := store.Set(ctx, "ice", want); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		var got iceEntry
		found, err := store.Get(ctx, "ice", &got)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !found {
			t.Fatal("Get() returned found = false, want true")
		}
		if got.Username != want.Username || got.Credential != want.Credential || len(got.URLs) != 1 {
			t.Errorf("Get() = %+v, want %+v", got, want)
		}
	})

	t.Run("miss", func(t *testing.T) {
		var got iceEntry
		found, err := store.Get(ctx, "nonexistent", &got)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if found {
			t.Error("Get() returned found = true for nonexistent key, want false")
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.Set(ctx, "to-delete", "some value"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := store.Delete(ctx, "to-delete"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		var got string
		if found, _ := store.Get(ctx, "to-delete", &got); found {
			t.Error("Key should not exist after deletion")
		}
	})
}

func TestMemory_Contract(t *testing.T) {
	storeContract(t, NewMemory(time.Minute))
}

func TestRedisCache_Contract(t *testing.T) {
	cache, cleanup := setupTestCache(t, "test:contract:")
	defer cleanup()

	storeContract(t, cache)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	mem.now = func() time.Time { return now }

	if err := mem.SetWithTTL(ctx, "expiring", "test value", 100*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}

	var result string
	if found, _ := mem.Get(ctx, "expiring", &result); !found {
		t.Fatal("Get() immediately after Set should find the key")
	}

	now = now.Add(100 * time.Millisecond)
	if found, _ := mem.Get(ctx, "expiring", &result); found {
		t.Error("Get() after TTL expiration should return found = false")
	}
	if mem.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired read", mem.Len())
	}
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(0)
	now := time.Unix(1_700_000_000, 0)
	mem.now = func() time.Time { return now }

	if err := mem.Set(ctx, "forever", 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	now = now.Add(365 * 24 * time.Hour)

	var got int
	if found, _ := mem.Get(ctx, "forever", &got); !found || got != 1 {
		t.Errorf("Get() = %d, %v, want 1, true", got, found)
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(time.Minute)

	in := []string{"a", "b"}
	if err := mem.Set(ctx, "slice", in); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	in[0] = "mutated"

	var out []string
	if _, err := mem.Get(ctx, "slice", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out[0] != "a" {
		t.Errorf("out[0] = %q, want %q", out[0], "a")
	}
}

func TestMemory_Stats(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(time.Minute)

	mem.Set(ctx, "stats-test", "value")

	var result string
	mem.Get(ctx, "stats-test", &result)
	mem.Get(ctx, "nonexistent", &result)
	mem.Get(ctx, "stats-test", &result)
	mem.Delete(ctx, "stats-test")

	stats := mem.GetStats()

	if stats.Sets != 1 {
		t.Errorf("Sets = %d, want 1", stats.Sets)
	}
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Deletes != 1 {
		t.Errorf("Deletes = %d, want 1", stats.Deletes)
	}
	if stats.TotalGets != 3 {
		t.Errorf("TotalGets = %d, want 3", stats.TotalGets)
	}

	// Hit rate should be ~66.67% (2 hits out of 3 gets)
	expectedHitRate := float64(2) / float64(3) * 100
	if stats.HitRate < expectedHitRate-0.01 || stats.HitRate > expectedHitRate+0.01 {
		t.Errorf("HitRate = %f, want ~%f", stats.HitRate, expectedHitRate)
	}
}

func TestRedisCache_SetWithTTL(t *testing.T) {
	cache, cleanup := setupTestCache(t, "test:ttl:")
	defer cleanup()

	ctx := context.Background()

	err := cache.SetWithTTL(ctx, "expiring", "test value", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}

	var result string
	found, err := cache.Get(ctx, "expiring", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() immediately after Set should find the key")
	}

	time.Sleep(200 * time.Millisecond)

	found, err = cache.Get(ctx, "expiring", &result)
	if err != nil {
		t.Fatalf("Get() after expiration error = %v", err)
	}
	if found {
		t.Error("Get() after TTL expiration should return found = false")
	}
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	cache, cleanup := setupTestCache(t, "myprefix:")
	defer cleanup()

	ctx := context.Background()

	if err := cache.Set(ctx, "mykey", "myvalue"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	result, err := cache.GetClient().Get(ctx, "myprefix:mykey").Result()
	if err != nil {
		t.Fatalf("Direct Redis Get error = %v", err)
	}
	if result != `"myvalue"` { // JSON encoded string
		t.Errorf("Stored value = %q, want %q", result, `"myvalue"`)
	}
}

func TestNewModule_SelectsBackend(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantBackend string
		wantClient  bool
	}{
		{"memory by default", DefaultConfig(), "memory", false},
		{"redis when addressed", Config{RedisAddr: testRedisAddr, Prefix: "p:", TTL: time.Minute}, "redis", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModule(tt.config, &mockLogger{})
			defer m.Stop(context.Background())

			if got := m.Store().Backend(); got != tt.wantBackend {
				t.Errorf("Backend() = %q, want %q", got, tt.wantBackend)
			}
			if (m.RedisClient() != nil) != tt.wantClient {
				t.Errorf("RedisClient() != nil = %v, want %v", m.RedisClient() != nil, tt.wantClient)
			}
		})
	}
}

func TestModule_MemoryLifecycle(t *testing.T) {
	m := NewModule(DefaultConfig(), &mockLogger{})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if status := m.Health(ctx); !status.Healthy {
		t.Errorf("Health() = %+v, want healthy", status)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
