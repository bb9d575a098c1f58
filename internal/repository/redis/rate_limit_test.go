package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRepository(t *testing.T, cfg SlidingWindowConfig) (*RateLimitRepository, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return NewRateLimitRepository(client, cfg), server
}

func TestRateLimitRepositoryWindowAccounting(t *testing.T) {
	repo, _ := newTestRepository(t, SlidingWindowConfig{KeyPrefix: "attempts"})

	ctx := context.Background()
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	window := time.Minute

	for i := 0; i < 3; i++ {
		if err := repo.RecordAttempt(ctx, "client-a", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("record attempt: %v", err)
		}
	}

	count, err := repo.CountAttempts(ctx, "client-a", window, now.Add(5*time.Second))
	if err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts, got %d", count)
	}

	oldest, found, err := repo.OldestAttempt(ctx, "client-a", window, now.Add(5*time.Second))
	if err != nil {
		t.Fatalf("oldest attempt: %v", err)
	}
	if !found || !oldest.Equal(now) {
		t.Fatalf("expected oldest %v, got %v (found=%v)", now, oldest, found)
	}

	// Well past the window nothing counts.
	count, err = repo.CountAttempts(ctx, "client-a", window, now.Add(window+5*time.Second))
	if err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected attempts to age out, got %d", count)
	}
}

func TestRateLimitRepositoryTrimWindow(t *testing.T) {
	repo, server := newTestRepository(t, SlidingWindowConfig{KeyPrefix: "attempts"})

	ctx := context.Background()
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	if err := repo.RecordAttempt(ctx, "client-b", now.Add(-5*time.Minute)); err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	if err := repo.RecordAttempt(ctx, "client-b", now); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	if err := repo.TrimWindow(ctx, "client-b", time.Minute, now.Add(time.Second)); err != nil {
		t.Fatalf("trim window: %v", err)
	}

	members, err := server.ZMembers("attempts:client-b")
	if err != nil {
		t.Fatalf("read sorted set: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 surviving attempt, got %d", len(members))
	}

	oldest, found, err := repo.OldestAttempt(ctx, "client-b", time.Minute, now.Add(time.Second))
	if err != nil {
		t.Fatalf("oldest attempt: %v", err)
	}
	if !found || !oldest.Equal(now) {
		t.Fatalf("expected oldest %v, got %v (found=%v)", now, oldest, found)
	}
}

func TestRateLimitRepositoryAppliesKeyTTL(t *testing.T) {
	ttl := 30 * time.Minute
	repo, server := newTestRepository(t, SlidingWindowConfig{KeyPrefix: "attempts", TTL: ttl})

	if err := repo.RecordAttempt(context.Background(), "client-c", time.Now()); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	remaining := server.TTL("attempts:client-c")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}
}

func TestRateLimitRepositoryClearAttempts(t *testing.T) {
	repo, server := newTestRepository(t, SlidingWindowConfig{KeyPrefix: "attempts"})

	ctx := context.Background()
	now := time.Now()

	if err := repo.RecordAttempt(ctx, "client-d", now); err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	if err := repo.ClearAttempts(ctx, "client-d"); err != nil {
		t.Fatalf("clear attempts: %v", err)
	}

	if server.Exists("attempts:client-d") {
		t.Fatal("expected key to be deleted")
	}

	_, found, err := repo.OldestAttempt(ctx, "client-d", time.Minute, now)
	if err != nil {
		t.Fatalf("oldest attempt: %v", err)
	}
	if found {
		t.Fatal("expected no surviving attempts")
	}
}

func TestRateLimitRepositoryRejectsNonPositiveWindow(t *testing.T) {
	repo, _ := newTestRepository(t, SlidingWindowConfig{KeyPrefix: "attempts"})

	ctx := context.Background()
	now := time.Now()

	if _, err := repo.CountAttempts(ctx, "client-e", 0, now); err == nil {
		t.Fatal("expected error for zero window in CountAttempts")
	}
	if err := repo.TrimWindow(ctx, "client-e", -time.Second, now); err == nil {
		t.Fatal("expected error for negative window in TrimWindow")
	}
	if _, _, err := repo.OldestAttempt(ctx, "client-e", 0, now); err == nil {
		t.Fatal("expected error for zero window in OldestAttempt")
	}
}
