package redis

import (
	"context"
	"fmt"

	"imagegen-api/internal/domain/repository"
)

// SettingsRepository 基于 Redis 字符串键的配置仓储
type SettingsRepository struct {
	client *Client
	prefix string
}

// NewSettingsRepository 创建配置仓储
func NewSettingsRepository(client *Client, prefix string) *SettingsRepository {
	return &SettingsRepository{
		client: client,
		prefix: prefix + ":settings:",
	}
}

// Get 读取配置
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.prefix+key)
	if IsNil(err) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// Set 写入配置，不过期
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// Delete 删除配置
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
