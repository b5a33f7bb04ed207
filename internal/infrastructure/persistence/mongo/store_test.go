package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/repository"
)

func TestSettingsRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get missing", func(mt *mtest.T) {
		repo := &SettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.settings", mtest.FirstBatch))

		if _, err := repo.Get(context.Background(), entity.CredentialKey); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("Get = %v, want ErrNotFound", err)
		}
	})

	mt.Run("get existing", func(mt *mtest.T) {
		repo := &SettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.settings", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: entity.CredentialKey},
			{Key: "value", Value: "stored-key-123"},
		}))

		v, err := repo.Get(context.Background(), entity.CredentialKey)
		if err != nil || v != "stored-key-123" {
			t.Fatalf("Get = %q, %v", v, err)
		}
	})

	mt.Run("set", func(mt *mtest.T) {
		repo := &SettingsRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		if err := repo.Set(context.Background(), entity.CredentialKey, "stored-key-123"); err != nil {
			t.Fatalf("Set: %v", err)
		}
	})
}

func TestHistoryRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("list newest first", func(mt *mtest.T) {
		repo := &HistoryRepository{collection: mt.Coll}
		now := time.Now().UTC().Truncate(time.Millisecond)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.generation_history", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "b"}, {Key: "prompt", Value: "second"}, {Key: "image_url", Value: "https://x/2.png"}, {Key: "created_at", Value: now}},
			bson.D{{Key: "_id", Value: "a"}, {Key: "prompt", Value: "first"}, {Key: "image_url", Value: "https://x/1.png"}, {Key: "created_at", Value: now.Add(-time.Second)}},
		))

		items, err := repo.List(context.Background())
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != 2 || items[0].Prompt != "second" || items[1].ImageURL != "https://x/1.png" {
			t.Fatalf("items = %+v", items)
		}
	})

	mt.Run("insert without overflow", func(mt *mtest.T) {
		repo := &HistoryRepository{collection: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, "db.generation_history", mtest.FirstBatch),
		)

		item := entity.NewHistoryItem("a red fox", "https://x/fox.png", time.Now())
		if err := repo.Insert(context.Background(), item, entity.HistoryLimit); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	})

	mt.Run("trim failure keeps insert", func(mt *mtest.T) {
		repo := &HistoryRepository{collection: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    2,
				Message: "bad sort",
				Name:    "BadValue",
			}),
		)

		item := entity.NewHistoryItem("a red fox", "https://x/fox.png", time.Now())
		if err := repo.Insert(context.Background(), item, entity.HistoryLimit); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	})

	mt.Run("delete failure keeps insert", func(mt *mtest.T) {
		repo := &HistoryRepository{collection: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, "db.generation_history", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "oldest"}},
			),
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    13,
				Message: "not authorized",
				Name:    "Unauthorized",
			}),
		)

		item := entity.NewHistoryItem("a red fox", "https://x/fox.png", time.Now())
		if err := repo.Insert(context.Background(), item, entity.HistoryLimit); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	})

	mt.Run("insert failure", func(mt *mtest.T) {
		repo := &HistoryRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Message: "duplicate key",
			Name:    "DuplicateKey",
		}))

		item := entity.NewHistoryItem("a red fox", "https://x/fox.png", time.Now())
		if err := repo.Insert(context.Background(), item, entity.HistoryLimit); err == nil {
			t.Fatal("expected error")
		}
	})
}
