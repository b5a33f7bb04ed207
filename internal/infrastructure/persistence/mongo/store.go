// Package mongo 提供基于 MongoDB 的存储实现
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"

	"imagegen-api/internal/config"
	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/repository"
	"imagegen-api/pkg/logger"
)

const (
	historyCollectionName  = "generation_history"
	settingsCollectionName = "settings"
)

var tracer = otel.Tracer("mongo")

var (
	_ repository.HistoryRepository  = (*HistoryRepository)(nil)
	_ repository.SettingsRepository = (*SettingsRepository)(nil)
)

// Store MongoDB 连接
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore 连接 MongoDB 并创建索引
func NewStore(cfg *config.MongoConfig) (*Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	_, err = db.Collection(historyCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		logger.Default().Warn("creating history index", logger.Err(err))
	}

	return &Store{client: client, db: db}, nil
}

// HealthCheck 健康检查
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close 断开连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// History 返回历史仓储
func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{collection: s.db.Collection(historyCollectionName)}
}

// Settings 返回配置仓储
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{collection: s.db.Collection(settingsCollectionName)}
}

// HistoryRepository MongoDB 历史仓储
type HistoryRepository struct {
	collection *mongo.Collection
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// Insert 插入条目并删除超出 limit 的旧条目
// 裁剪为尽力而为：失败只记日志，下一次插入会补齐，List 也只返回前 limit 条
func (r *HistoryRepository) Insert(ctx context.Context, item *entity.HistoryItem, limit int) error {
	ctx, span := tracer.Start(ctx, "mongo.HistoryRepository.Insert")
	defer span.End()

	if _, err := r.collection.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("inserting history item: %w", err)
	}
	if err := r.trim(ctx, limit); err != nil {
		logger.Warn(ctx, "trimming history failed", logger.Err(err), "limit", limit)
	}
	return nil
}

// trim 删除排在 limit 之后的条目
func (r *HistoryRepository) trim(ctx context.Context, limit int) error {
	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(limit)).
		SetProjection(bson.M{"_id": 1})
	cur, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("finding stale history: %w", err)
	}
	var stale []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &stale); err != nil {
		return fmt.Errorf("decoding stale history: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	ids := make([]string, 0, len(stale))
	for _, s := range stale {
		ids = append(ids, s.ID)
	}
	if _, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}
	return nil
}

// List 按时间倒序返回全部条目
func (r *HistoryRepository) List(ctx context.Context) ([]*entity.HistoryItem, error) {
	ctx, span := tracer.Start(ctx, "mongo.HistoryRepository.List")
	defer span.End()

	opts := options.Find().SetSort(newestFirst).SetLimit(int64(entity.HistoryLimit))
	cur, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("finding history: %w", err)
	}
	var items []*entity.HistoryItem
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return items, nil
}

// Clear 清空历史
func (r *HistoryRepository) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "mongo.HistoryRepository.Clear")
	defer span.End()

	if _, err := r.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// SettingsRepository MongoDB 配置仓储
type SettingsRepository struct {
	collection *mongo.Collection
}

type settingDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Get 读取配置
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var doc settingDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("finding setting: %w", err)
	}
	return doc.Value, nil
}

// Set 写入配置
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	doc := settingDoc{Key: key, Value: value, UpdatedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return fmt.Errorf("saving setting: %w", err)
	}
	return nil
}

// Delete 删除配置
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("deleting setting: %w", err)
	}
	return nil
}
