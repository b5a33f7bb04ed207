package handler

import (
	"io"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/infrastructure/messaging"
	"imagegen-api/pkg/logger"
)

// EventSubscriber 生命周期事件订阅
type EventSubscriber interface {
	Subscribe() (<-chan *entity.LifecycleEvent, func())
}

// EventHandler 生命周期事件 SSE 推送
type EventHandler struct {
	bus         EventSubscriber
	replayer    messaging.Replayer
	heartbeat   time.Duration
	replayLimit int64
}

// NewEventHandler 创建事件处理器，replayer 可为 nil
func NewEventHandler(bus EventSubscriber, replayer messaging.Replayer, heartbeat time.Duration, replayLimit int64) *EventHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	if replayLimit <= 0 {
		replayLimit = 100
	}
	return &EventHandler{
		bus:         bus,
		replayer:    replayer,
		heartbeat:   heartbeat,
		replayLimit: replayLimit,
	}
}

// Stream 推送生命周期事件，支持 Last-Event-ID 断线补发
// @Summary 生命周期事件流
// @Tags Events
// @Produce text/event-stream
// @Success 200 "SSE stream"
// @Router /v1/events [get]
func (h *EventHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 先订阅再补发，避免两者之间的事件丢失
	events, cancel := h.bus.Subscribe()
	defer cancel()

	var backlog []*entity.LifecycleEvent
	replayed := make(map[string]struct{})
	lastID := c.GetHeader("Last-Event-ID")
	if lastID == "" {
		lastID = c.Query("lastEventId")
	}
	if lastID != "" && h.replayer != nil {
		missed, err := h.replayer.Replay(ctx, lastID, h.replayLimit)
		if err != nil {
			logger.Warn(ctx, "event replay failed", "last_event_id", lastID, logger.Err(err))
		}
		for _, ev := range missed {
			replayed[ev.ID] = struct{}{}
		}
		backlog = missed
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		if len(backlog) > 0 {
			writeEvent(c, backlog[0])
			backlog = backlog[1:]
			return true
		}

		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if _, dup := replayed[ev.ID]; dup {
				return true
			}
			writeEvent(c, ev)
			return true
		case t := <-ticker.C:
			c.Render(-1, sse.Event{Event: "heartbeat", Data: t.Unix()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func writeEvent(c *gin.Context, ev *entity.LifecycleEvent) {
	c.Render(-1, sse.Event{
		Id:    ev.ID,
		Event: string(ev.Type),
		Data:  ev,
	})
}
