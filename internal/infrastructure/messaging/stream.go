package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/pkg/logger"
	"imagegen-api/pkg/metrics"
)

var tracer = otel.Tracer("messaging")

// DefaultStream 生命周期事件流
const DefaultStream = "stream:generation:events"

// StreamConfig 事件流配置
type StreamConfig struct {
	Stream       string
	MaxLen       int64
	BlockTimeout time.Duration
}

func (c *StreamConfig) normalize() {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.MaxLen <= 0 {
		c.MaxLen = 1000
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
}

// StreamPublisher 通过 Redis Stream 跨实例广播事件
// 写入成功后由 StreamRelay 投递到本地总线
type StreamPublisher struct {
	client *redis.Client
	cfg    StreamConfig
	bus    *Bus
}

var (
	_ Publisher = (*StreamPublisher)(nil)
	_ Replayer  = (*StreamPublisher)(nil)
)

// NewStreamPublisher 创建流发布者
func NewStreamPublisher(client *redis.Client, bus *Bus, cfg StreamConfig) *StreamPublisher {
	cfg.normalize()
	return &StreamPublisher{client: client, cfg: cfg, bus: bus}
}

// Publish 写入事件流，失败时退化为本地投递
func (p *StreamPublisher) Publish(ctx context.Context, event *entity.LifecycleEvent) {
	ctx, span := tracer.Start(ctx, "stream.Publish",
		trace.WithAttributes(
			attribute.String("stream", p.cfg.Stream),
			attribute.String("event.type", string(event.Type)),
			attribute.String("attempt.id", event.AttemptID),
		))
	defer span.End()

	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	id, err := p.add(ctx, event)
	if err != nil {
		span.RecordError(err)
		logger.Warn(ctx, "event stream unavailable, delivering locally",
			"type", event.Type,
			logger.Err(err),
		)
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		p.bus.Deliver(event)
		return
	}
	span.SetAttributes(attribute.String("stream.message_id", id))
}

func (p *StreamPublisher) add(ctx context.Context, event *entity.LifecycleEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.cfg.Stream,
		MaxLen: p.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add event: %w", err)
	}
	return id, nil
}

// Replay 读取 afterID 之后的至多 limit 条事件
func (p *StreamPublisher) Replay(ctx context.Context, afterID string, limit int64) ([]*entity.LifecycleEvent, error) {
	ctx, span := tracer.Start(ctx, "stream.Replay")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	// 起点包含 afterID 本身，多取一条后跳过
	msgs, err := p.client.XRangeN(ctx, p.cfg.Stream, afterID, "+", limit+1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to range stream: %w", err)
	}

	out := make([]*entity.LifecycleEvent, 0, len(msgs))
	for _, xmsg := range msgs {
		if xmsg.ID == afterID {
			continue
		}
		ev, err := decodeEntry(xmsg)
		if err != nil {
			logger.Warn(ctx, "skipping undecodable stream entry", "message_id", xmsg.ID, logger.Err(err))
			continue
		}
		out = append(out, ev)
		if int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// StreamRelay 读取事件流并投递到本地总线
type StreamRelay struct {
	client  *redis.Client
	cfg     StreamConfig
	bus     *Bus
	started chan struct{}
}

// NewStreamRelay 创建事件流中继
func NewStreamRelay(client *redis.Client, bus *Bus, cfg StreamConfig) *StreamRelay {
	cfg.normalize()
	return &StreamRelay{
		client:  client,
		cfg:     cfg,
		bus:     bus,
		started: make(chan struct{}),
	}
}

// Started 在中继确定读取起点后关闭
func (r *StreamRelay) Started() <-chan struct{} {
	return r.started
}

// ErrRelayNotStarted 中继尚未确定读取起点
var ErrRelayNotStarted = errors.New("event relay not started")

// HealthCheck 中继确定起点前返回 ErrRelayNotStarted，供 /ready 使用
func (r *StreamRelay) HealthCheck(_ context.Context) error {
	select {
	case <-r.started:
		return nil
	default:
		return ErrRelayNotStarted
	}
}

// Run 阻塞读取直到 ctx 取消，只转发启动之后写入的事件
func (r *StreamRelay) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	lastID, err := r.tailID(ctx)
	if err != nil {
		return err
	}
	close(r.started)
	log.Info("event relay started", "stream", r.cfg.Stream, "from", lastID)

	for {
		if ctx.Err() != nil {
			log.Info("event relay stopped")
			return nil
		}

		streams, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{r.cfg.Stream, lastID},
			Count:   100,
			Block:   r.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				log.Info("event relay stopped")
				return nil
			}
			log.Error("failed to read from stream", logger.Err(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				lastID = xmsg.ID
				ev, err := decodeEntry(xmsg)
				if err != nil {
					log.Warn("invalid event entry", "message_id", xmsg.ID, logger.Err(err))
					continue
				}
				r.bus.Deliver(ev)
			}
		}
	}
}

// tailID 返回当前最后一条记录的 ID，空流返回 0-0
func (r *StreamRelay) tailID(ctx context.Context) (string, error) {
	msgs, err := r.client.XRevRangeN(ctx, r.cfg.Stream, "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read stream tail: %w", err)
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}

func decodeEntry(xmsg redis.XMessage) (*entity.LifecycleEvent, error) {
	data, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing data field")
	}
	var ev entity.LifecycleEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	ev.ID = xmsg.ID
	return &ev, nil
}
