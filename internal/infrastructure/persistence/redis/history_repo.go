package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/pkg/logger"
)

// HistoryRepository 基于 Redis List 的历史仓储，表头为最新条目
type HistoryRepository struct {
	client *Client
	key    string
}

// NewHistoryRepository 创建历史仓储
func NewHistoryRepository(client *Client, prefix string) *HistoryRepository {
	return &HistoryRepository{
		client: client,
		key:    prefix + ":history",
	}
}

// Insert 在事务中 LPUSH 并 LTRIM
func (r *HistoryRepository) Insert(ctx context.Context, item *entity.HistoryItem, limit int) error {
	ctx, span := tracer.Start(ctx, "redis.HistoryRepository.Insert",
		trace.WithAttributes(attribute.String("history.id", item.ID)))
	defer span.End()

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal history item: %w", err)
	}

	pipe := r.client.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, int64(limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert history item: %w", err)
	}
	return nil
}

// List 返回全部条目，无法解析的条目跳过
func (r *HistoryRepository) List(ctx context.Context) ([]*entity.HistoryItem, error) {
	ctx, span := tracer.Start(ctx, "redis.HistoryRepository.List")
	defer span.End()

	values, err := r.client.rdb.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	items := make([]*entity.HistoryItem, 0, len(values))
	for _, v := range values {
		var item entity.HistoryItem
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			logger.Warn(ctx, "skipping unreadable history entry", logger.Err(err))
			continue
		}
		items = append(items, &item)
	}
	span.SetAttributes(attribute.Int("history.count", len(items)))
	return items, nil
}

// Clear 删除历史键
func (r *HistoryRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
