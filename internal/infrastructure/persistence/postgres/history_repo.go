package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/repository"
)

var _ repository.HistoryRepository = (*HistoryRepository)(nil)

// HistoryRepository 历史记录仓储
type HistoryRepository struct {
	client *Client
	tx     *TxManager
}

// NewHistoryRepository 创建历史记录仓储
func NewHistoryRepository(client *Client) *HistoryRepository {
	return &HistoryRepository{client: client, tx: NewTxManager(client)}
}

// Insert 插入条目并删除超出 limit 的旧条目
func (r *HistoryRepository) Insert(ctx context.Context, item *entity.HistoryItem, limit int) error {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.Insert")
	defer span.End()

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := getDB(ctx, r.client.db)
		if err := db.Create(item).Error; err != nil {
			return fmt.Errorf("failed to create history item: %w", err)
		}

		var stale []string
		if err := db.Model(&entity.HistoryItem{}).
			Order("created_at DESC").Order("id DESC").
			Offset(limit).
			Pluck("id", &stale).Error; err != nil {
			return fmt.Errorf("failed to find stale history: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}
		if err := db.Where("id = ANY(?)", pq.Array(stale)).Delete(&entity.HistoryItem{}).Error; err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// List 按时间倒序返回全部条目
func (r *HistoryRepository) List(ctx context.Context) ([]*entity.HistoryItem, error) {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.List")
	defer span.End()

	var items []*entity.HistoryItem
	if err := getDB(ctx, r.client.db).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return items, nil
}

// Clear 清空历史
func (r *HistoryRepository) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.Clear")
	defer span.End()

	if err := getDB(ctx, r.client.db).Exec("DELETE FROM generation_history").Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
