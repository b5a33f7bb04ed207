// Package service 定义领域服务接口
package service

import (
	"context"
	"errors"

	"imagegen-api/internal/domain/entity"
)

// ErrNoActiveContext 没有可用的前台页面
var ErrNoActiveContext = errors.New("no active page context")

// ContextResolver 解析当前前台页面上下文
type ContextResolver interface {
	ActiveContext(ctx context.Context) (*entity.PageContext, error)
}

// SelectionProvider 在指定页面上下文中获取当前选区
// 返回错误表示页面不可达
type SelectionProvider interface {
	CurrentSelection(ctx context.Context, page *entity.PageContext) (*entity.SelectionResponse, error)
}
