// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"errors"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// TxKey 事务上下文键类型
type TxKey struct{}

// Transactor 事务管理接口
type Transactor interface {
	// WithTransaction 在事务中执行操作
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// HealthChecker 存储健康检查
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
