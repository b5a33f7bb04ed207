// Package pagecontext 提供页面上下文注册表与选区获取
package pagecontext

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/service"
)

// ErrContextNotFound 页面上下文不存在
var ErrContextNotFound = errors.New("page context not found")

var _ service.ContextResolver = (*Registry)(nil)

// Registry 内存中的页面上下文注册表，同一时刻至多一个处于前台
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]*entity.PageContext
	activeID string
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*entity.PageContext)}
}

// Register 注册页面上下文并设为前台
func (r *Registry) Register(title, pageURL, endpoint string) (*entity.PageContext, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}

	pc := &entity.PageContext{
		ID:           uuid.NewString(),
		Title:        title,
		URL:          pageURL,
		Endpoint:     endpoint,
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[pc.ID] = pc
	r.activeID = pc.ID
	return r.snapshot(pc), nil
}

// Activate 将指定上下文切到前台
func (r *Registry) Activate(id string) (*entity.PageContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pc, ok := r.contexts[id]
	if !ok {
		return nil, ErrContextNotFound
	}
	r.activeID = id
	return r.snapshot(pc), nil
}

// Remove 注销上下文，移除前台上下文后不再有前台
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contexts[id]; !ok {
		return ErrContextNotFound
	}
	delete(r.contexts, id)
	if r.activeID == id {
		r.activeID = ""
	}
	return nil
}

// List 按注册时间返回所有上下文
func (r *Registry) List() []*entity.PageContext {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.PageContext, 0, len(r.contexts))
	for _, pc := range r.contexts {
		out = append(out, r.snapshot(pc))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

// ActiveContext 返回前台上下文
func (r *Registry) ActiveContext(_ context.Context) (*entity.PageContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, ok := r.contexts[r.activeID]
	if !ok {
		return nil, service.ErrNoActiveContext
	}
	return r.snapshot(pc), nil
}

// snapshot 返回副本，调用方须持有锁
func (r *Registry) snapshot(pc *entity.PageContext) *entity.PageContext {
	cp := *pc
	cp.Active = pc.ID == r.activeID
	return &cp
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: must be an absolute http(s) URL", endpoint)
	}
	return nil
}
