// Package messaging 提供生命周期事件广播
package messaging

import (
	"context"
	"sync"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/pkg/metrics"
)

// Publisher 生命周期事件发布者，Publish 不返回错误且不阻塞调用方
type Publisher interface {
	Publish(ctx context.Context, event *entity.LifecycleEvent)
}

// Replayer 按事件 ID 补发错过的事件
type Replayer interface {
	Replay(ctx context.Context, afterID string, limit int64) ([]*entity.LifecycleEvent, error)
}

// DefaultSubscriberBuffer 订阅者默认缓冲区大小
const DefaultSubscriberBuffer = 32

// Bus 进程内事件扇出
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan *entity.LifecycleEvent
	nextID uint64
	buffer int
}

// NewBus 创建事件总线
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Bus{
		subs:   make(map[uint64]chan *entity.LifecycleEvent),
		buffer: buffer,
	}
}

// Subscribe 注册订阅者，返回事件通道与取消函数
func (b *Bus) Subscribe() (<-chan *entity.LifecycleEvent, func()) {
	ch := make(chan *entity.LifecycleEvent, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	metrics.EventSubscribers.Set(float64(len(b.subs)))
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			metrics.EventSubscribers.Set(float64(len(b.subs)))
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Deliver 投递给所有订阅者，缓冲区已满的订阅者丢弃该事件
func (b *Bus) Deliver(event *entity.LifecycleEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			metrics.EventsDropped.Inc()
		}
	}
}

// Subscribers 当前订阅者数量
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
