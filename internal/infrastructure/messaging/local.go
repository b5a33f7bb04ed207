package messaging

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/pkg/metrics"
)

// LocalPublisher 单实例发布者，直接投递到进程内总线
type LocalPublisher struct {
	bus *Bus

	mu     sync.Mutex
	recent []*entity.LifecycleEvent
	keep   int
}

var (
	_ Publisher = (*LocalPublisher)(nil)
	_ Replayer  = (*LocalPublisher)(nil)
)

// NewLocalPublisher 创建本地发布者，keep 为保留用于补发的最近事件数
func NewLocalPublisher(bus *Bus, keep int) *LocalPublisher {
	if keep <= 0 {
		keep = 100
	}
	return &LocalPublisher{bus: bus, keep: keep}
}

// Publish 分配 ID 并投递
func (p *LocalPublisher) Publish(_ context.Context, event *entity.LifecycleEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	p.mu.Lock()
	p.recent = append(p.recent, event)
	if len(p.recent) > p.keep {
		p.recent = p.recent[len(p.recent)-p.keep:]
	}
	p.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
	p.bus.Deliver(event)
}

// Replay 返回 afterID 之后的事件，afterID 已不在缓冲中时返回全部保留事件
func (p *LocalPublisher) Replay(_ context.Context, afterID string, limit int64) ([]*entity.LifecycleEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := 0
	for i, ev := range p.recent {
		if ev.ID == afterID {
			start = i + 1
			break
		}
	}
	out := make([]*entity.LifecycleEvent, 0, len(p.recent)-start)
	for _, ev := range p.recent[start:] {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}
