package repository

import (
	"context"

	"imagegen-api/internal/domain/entity"
)

// HistoryRepository 生成历史仓储
// 列表按时间倒序存放，插入后最多保留 limit 条
type HistoryRepository interface {
	// Insert 将条目插入头部并裁剪尾部
	Insert(ctx context.Context, item *entity.HistoryItem, limit int) error
	// List 按时间倒序返回全部条目
	List(ctx context.Context) ([]*entity.HistoryItem, error)
	// Clear 清空历史
	Clear(ctx context.Context) error
}
