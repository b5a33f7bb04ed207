package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"imagegen-api/internal/domain/repository"
)

var _ repository.SettingsRepository = (*SettingsRepository)(nil)

// SettingsRepository 配置仓储
type SettingsRepository struct {
	client *Client
}

// NewSettingsRepository 创建配置仓储
func NewSettingsRepository(client *Client) *SettingsRepository {
	return &SettingsRepository{client: client}
}

// Get 读取配置
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	ctx, span := tracer.Start(ctx, "postgres.SettingsRepository.Get")
	defer span.End()

	var s Setting
	err := getDB(ctx, r.client.db).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return s.Value, nil
}

// Set 写入配置
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	ctx, span := tracer.Start(ctx, "postgres.SettingsRepository.Set")
	defer span.End()

	err := getDB(ctx, r.client.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Key: key, Value: value}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// Delete 删除配置
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "postgres.SettingsRepository.Delete")
	defer span.End()

	if err := getDB(ctx, r.client.db).Where("key = ?", key).Delete(&Setting{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}
