// Package memory 提供进程内存储实现，用于测试与单机调试
package memory

import (
	"context"
	"sync"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/repository"
)

// HistoryRepository 内存历史仓储
type HistoryRepository struct {
	mu    sync.RWMutex
	items []*entity.HistoryItem
}

// NewHistoryRepository 创建内存历史仓储
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

// Insert 读-改-写整表
func (r *HistoryRepository) Insert(_ context.Context, item *entity.HistoryItem, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *item
	r.items = entity.PrependHistory(r.items, &cp, limit)
	return nil
}

// List 返回副本
func (r *HistoryRepository) List(_ context.Context) ([]*entity.HistoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.HistoryItem, 0, len(r.items))
	for _, it := range r.items {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

// Clear 清空
func (r *HistoryRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	return nil
}

// SettingsRepository 内存配置仓储
type SettingsRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSettingsRepository 创建内存配置仓储
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{values: make(map[string]string)}
}

// Get 读取配置
func (r *SettingsRepository) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

// Set 写入配置
func (r *SettingsRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

// Delete 删除配置
func (r *SettingsRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}
