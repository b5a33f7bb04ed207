// Package sqlite 提供基于 SQLite 的本地存储实现
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/repository"
)

// Store SQLite 存储，同时实现历史与配置仓储
type Store struct {
	db *sql.DB
}

var (
	_ repository.HistoryRepository  = (*HistoryRepository)(nil)
	_ repository.SettingsRepository = (*SettingsRepository)(nil)
)

// Open 打开（或创建）数据库并执行迁移
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 单连接串行写入
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck 健康检查
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// History 返回历史仓储
func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{db: s.db}
}

// Settings 返回配置仓储
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// currentSchemaVersion 每次变更表结构时递增
const currentSchemaVersion = 2

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []func() error{
		s.migrateV1, // v0 -> v1: 历史表
		s.migrateV2, // v1 -> v2: 配置表
	}

	for i := version; i < currentSchemaVersion; i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d -> v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS generation_history (
		id         TEXT PRIMARY KEY,
		prompt     TEXT NOT NULL,
		image_url  TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_created ON generation_history(created_at DESC);
	`)
	return err
}

func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`)
	return err
}

// HistoryRepository SQLite 历史仓储
type HistoryRepository struct {
	db *sql.DB
}

// Insert 在事务中插入并删除超出上限的旧条目
func (r *HistoryRepository) Insert(ctx context.Context, item *entity.HistoryItem, limit int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generation_history (id, prompt, image_url, created_at) VALUES (?, ?, ?, ?)`,
		item.ID, item.Prompt, item.ImageURL, item.Timestamp.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert history item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM generation_history WHERE id NOT IN (
			SELECT id FROM generation_history ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, limit,
	); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	return tx.Commit()
}

// List 按时间倒序返回
func (r *HistoryRepository) List(ctx context.Context) ([]*entity.HistoryItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, prompt, image_url, created_at FROM generation_history ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []*entity.HistoryItem
	for rows.Next() {
		var (
			item entity.HistoryItem
			ts   int64
		)
		if err := rows.Scan(&item.ID, &item.Prompt, &item.ImageURL, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		item.Timestamp = time.Unix(0, ts)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Clear 清空历史
func (r *HistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM generation_history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// SettingsRepository SQLite 配置仓储
type SettingsRepository struct {
	db *sql.DB
}

// Get 读取配置
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// Set 写入配置
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Delete 删除配置
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}
