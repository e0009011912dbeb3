package integration

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"cardfetch/internal/server"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestRedisStore_RoundTrip(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := server.NewRedisStore(redisClient, time.Hour)
	ctx := context.Background()

	card := server.Card{
		Name:       "Opt",
		OracleText: "Scry 1. Draw a card.",
		ManaCost:   "{U}",
		TypeLine:   "Instant",
		SetName:    "Dominaria",
		Found:      true,
	}
	if err := store.Set(ctx, card); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "Opt")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != card {
		t.Errorf("Get = %+v, want %+v", got, card)
	}

	if _, err := store.Get(ctx, "Ponder"); err != server.ErrCacheMiss {
		t.Errorf("Get on missing name = %v, want ErrCacheMiss", err)
	}
}

func TestRedisStore_LenAndAll(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := server.NewRedisStore(redisClient, time.Hour)
	ctx := context.Background()

	for _, name := range []string{"Ponder", "Brainstorm", "Opt"} {
		if err := store.Set(ctx, server.Card{Name: name, Found: true}); err != nil {
			t.Fatalf("Set(%q) failed: %v", name, err)
		}
	}

	n, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Len = %d, want 3", n)
	}

	cards, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	want := []string{"Brainstorm", "Opt", "Ponder"}
	if len(cards) != len(want) {
		t.Fatalf("All returned %d cards, want %d", len(cards), len(want))
	}
	for i, name := range want {
		if cards[i].Name != name {
			t.Errorf("All[%d].Name = %q, want %q (sorted)", i, cards[i].Name, name)
		}
	}
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := server.NewRedisStore(redisClient, time.Second)
	ctx := context.Background()

	if err := store.Set(ctx, server.Card{Name: "Opt", Found: true}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := store.Get(ctx, "Opt"); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := store.Get(ctx, "Opt"); err != server.ErrCacheMiss {
		t.Errorf("Get after expiry = %v, want ErrCacheMiss", err)
	}
}

func TestRedisStore_Clear(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := server.NewRedisStore(redisClient, time.Hour)
	ctx := context.Background()

	// Data outside the cache namespace must survive Clear.
	if err := redisClient.Set(ctx, "unrelated", "keep", 0).Err(); err != nil {
		t.Fatalf("Seed unrelated key: %v", err)
	}

	store.Set(ctx, server.Card{Name: "Opt", Found: true})
	store.Set(ctx, server.Card{Name: "Ponder", Found: true})

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	n, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len after clear failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Len after clear = %d, want 0", n)
	}

	if val, err := redisClient.Get(ctx, "unrelated").Result(); err != nil || val != "keep" {
		t.Errorf("Unrelated key = (%q, %v), want it untouched", val, err)
	}
}
