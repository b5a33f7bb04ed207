package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/repository"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewClientFromRedis(rdb), mr
}

func TestHistoryRepositoryBounded(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewHistoryRepository(client, "test")
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 55; i++ {
		item := entity.NewHistoryItem(fmt.Sprintf("p%d", i), fmt.Sprintf("https://fal.media/%d.jpg", i), base.Add(time.Duration(i)*time.Second))
		if err := repo.Insert(ctx, item, entity.HistoryLimit); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != entity.HistoryLimit {
		t.Fatalf("len = %d", len(items))
	}
	if items[0].Prompt != "p54" || items[49].Prompt != "p5" {
		t.Fatalf("order: first=%s last=%s", items[0].Prompt, items[49].Prompt)
	}
}

func TestHistoryRepositoryClearIdempotent(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewHistoryRepository(client, "test")
	ctx := context.Background()

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear on empty: %v", err)
	}
	_ = repo.Insert(ctx, entity.NewHistoryItem("a", "https://x/a.png", time.Now()), entity.HistoryLimit)
	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	items, err := repo.List(ctx)
	if err != nil || len(items) != 0 {
		t.Fatalf("List after clear = %d, %v", len(items), err)
	}
}

func TestHistoryRepositorySkipsCorruptEntries(t *testing.T) {
	client, mr := newTestClient(t)
	repo := NewHistoryRepository(client, "test")
	ctx := context.Background()

	_ = repo.Insert(ctx, entity.NewHistoryItem("ok", "https://x/a.png", time.Now()), entity.HistoryLimit)
	if _, err := mr.Lpush("test:history", "{not json"); err != nil {
		t.Fatal(err)
	}

	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Prompt != "ok" {
		t.Fatalf("items = %+v", items)
	}
}

func TestHistoryRepositoryStorageFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := NewHistoryRepository(NewClientFromRedis(rdb), "test")
	mr.Close()

	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestSettingsRepository(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewSettingsRepository(client, "test")
	ctx := context.Background()

	if _, err := repo.Get(ctx, entity.CredentialKey); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get missing = %v", err)
	}
	if err := repo.Set(ctx, entity.CredentialKey, "fal-key-1234567890"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := repo.Get(ctx, entity.CredentialKey)
	if err != nil || got != "fal-key-1234567890" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := repo.Delete(ctx, entity.CredentialKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, entity.CredentialKey); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client, "test")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "generate", 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("request %d: allowed=%v err=%v", i, ok, err)
		}
	}
	ok, err := limiter.Allow(ctx, "generate", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("fourth request should be limited")
	}
}
