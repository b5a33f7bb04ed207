package repository

import "context"

// SettingsRepository 键值配置仓储
type SettingsRepository interface {
	// Get 读取配置，不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
