// Package history 提供生成历史记录服务
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/repository"
	apperrors "imagegen-api/pkg/errors"
	"imagegen-api/pkg/logger"
	"imagegen-api/pkg/metrics"
	"imagegen-api/pkg/tracer"
)

// ErrClosed 服务已关闭
var ErrClosed = errors.New("history service closed")

// op 串行执行的写操作
type op struct {
	ctx    context.Context
	run    func(ctx context.Context) error
	result chan error
}

// Service 历史记录服务
// 所有写操作由单个 goroutine 按到达顺序执行
type Service struct {
	repo  repository.HistoryRepository
	limit int
	now   func() time.Time

	ops       chan op
	closed    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	reads singleflight.Group

	// 仅由写协程访问
	lastTimestamp time.Time
}

// NewService 创建服务并启动写协程
func NewService(repo repository.HistoryRepository) *Service {
	s := &Service{
		repo:    repo,
		limit:   entity.HistoryLimit,
		now:     time.Now,
		ops:     make(chan op),
		closed:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.writer()
	return s
}

func (s *Service) writer() {
	defer close(s.stopped)
	for {
		select {
		case o := <-s.ops:
			if err := o.ctx.Err(); err != nil {
				o.result <- err
				continue
			}
			o.result <- o.run(o.ctx)
		case <-s.closed:
			return
		}
	}
}

// submit 提交写操作并等待结果
func (s *Service) submit(ctx context.Context, run func(ctx context.Context) error) error {
	o := op{ctx: ctx, run: run, result: make(chan error, 1)}
	select {
	case s.ops <- o:
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-o.result
}

// Insert 新增历史条目，超出上限时淘汰最旧条目
func (s *Service) Insert(ctx context.Context, prompt, imageURL string) (*entity.HistoryItem, error) {
	ctx, span := tracer.Start(ctx, "history.Insert")
	defer span.End()

	var item *entity.HistoryItem
	err := s.submit(ctx, func(ctx context.Context) error {
		ts := s.now()
		if ts.Before(s.lastTimestamp) {
			ts = s.lastTimestamp
		}
		item = entity.NewHistoryItem(prompt, imageURL, ts)
		if err := s.repo.Insert(ctx, item, s.limit); err != nil {
			return err
		}
		s.lastTimestamp = ts
		s.reads.Forget(listKey)
		return nil
	})
	if err != nil {
		tracer.RecordError(span, err)
		logger.Error(ctx, "failed to save history", err)
		return nil, apperrors.Storage(err, apperrors.MsgSaveHistory)
	}
	return item, nil
}

const (
	listKey = "list"

	// readTimeout 合并读取的存储超时，独立于任一调用方
	readTimeout = 10 * time.Second
)

// GetAll 返回全部历史，最新在前；并发读取合并为一次存储访问
func (s *Service) GetAll(ctx context.Context) ([]*entity.HistoryItem, error) {
	ctx, span := tracer.Start(ctx, "history.GetAll")
	defer span.End()

	// 共享读取不继承首个调用方的取消，每个调用方只等待自己的 ctx
	ch := s.reads.DoChan(listKey, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readTimeout)
		defer cancel()
		return s.repo.List(readCtx)
	})

	var (
		v   interface{}
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		tracer.RecordError(span, err)
		logger.Error(ctx, "failed to retrieve history", err)
		return nil, apperrors.Storage(err, apperrors.MsgRetrieveHistory)
	}

	items := v.([]*entity.HistoryItem)
	out := make([]*entity.HistoryItem, len(items))
	copy(out, items)
	metrics.HistoryItems.Set(float64(len(out)))
	return out, nil
}

// Clear 清空历史，重复调用无副作用
func (s *Service) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "history.Clear")
	defer span.End()

	err := s.submit(ctx, func(ctx context.Context) error {
		if err := s.repo.Clear(ctx); err != nil {
			return err
		}
		s.reads.Forget(listKey)
		return nil
	})
	if err != nil {
		tracer.RecordError(span, err)
		logger.Error(ctx, "failed to clear history", err)
		return apperrors.Storage(err, apperrors.MsgClearHistory)
	}
	metrics.HistoryItems.Set(0)
	return nil
}

// Close 停止写协程
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	<-s.stopped
}
