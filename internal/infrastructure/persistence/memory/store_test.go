package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/repository"
)

func TestHistoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewHistoryRepository()
	ctx := context.Background()

	_ = repo.Insert(ctx, entity.NewHistoryItem("a", "https://x/a.png", time.Now()), entity.HistoryLimit)
	items, _ := repo.List(ctx)
	items[0].Prompt = "mutated"

	again, _ := repo.List(ctx)
	if again[0].Prompt != "a" {
		t.Fatalf("stored item was mutated through List result")
	}
}

func TestHistoryRepositoryBounded(t *testing.T) {
	repo := NewHistoryRepository()
	ctx := context.Background()
	for i := 0; i < 51; i++ {
		_ = repo.Insert(ctx, entity.NewHistoryItem(fmt.Sprint(i), "https://x/y.png", time.Now()), entity.HistoryLimit)
	}
	items, _ := repo.List(ctx)
	if len(items) != 50 || items[0].Prompt != "50" || items[49].Prompt != "1" {
		t.Fatalf("len=%d first=%s last=%s", len(items), items[0].Prompt, items[len(items)-1].Prompt)
	}
}

func TestSettingsRepository(t *testing.T) {
	repo := NewSettingsRepository()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "k"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get missing = %v", err)
	}
	_ = repo.Set(ctx, "k", "v")
	if v, err := repo.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	_ = repo.Delete(ctx, "k")
	if _, err := repo.Get(ctx, "k"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
}
