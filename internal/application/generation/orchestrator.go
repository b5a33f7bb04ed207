// Package generation 提供图像生成编排
package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/message"
	"imagegen-api/internal/domain/service"
	apperrors "imagegen-api/pkg/errors"
	"imagegen-api/pkg/logger"
	"imagegen-api/pkg/metrics"
	"imagegen-api/pkg/tracer"
)

// ErrShuttingDown 服务关闭中，不再接受新的生成请求
var ErrShuttingDown = errors.New("orchestrator is shutting down")

// ImageGenerator 文生图服务
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, credential string) (string, error)
}

// CredentialSource 凭证来源，每次调用读取最新值
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// HistoryRecorder 历史记录写入
type HistoryRecorder interface {
	Insert(ctx context.Context, prompt, imageURL string) (*entity.HistoryItem, error)
}

// EventPublisher 生命周期事件发布
type EventPublisher interface {
	Publish(ctx context.Context, event *entity.LifecycleEvent)
}

// Orchestrator 生成编排器
// 每次尝试都以且仅以一个终态事件结束
type Orchestrator struct {
	contexts    service.ContextResolver
	selection   service.SelectionProvider
	credentials CredentialSource
	generator   ImageGenerator
	history     HistoryRecorder
	events      EventPublisher

	mu       sync.RWMutex
	closing  bool
	inflight sync.WaitGroup
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	contexts service.ContextResolver,
	selection service.SelectionProvider,
	credentials CredentialSource,
	generator ImageGenerator,
	history HistoryRecorder,
	events EventPublisher,
) *Orchestrator {
	return &Orchestrator{
		contexts:    contexts,
		selection:   selection,
		credentials: credentials,
		generator:   generator,
		history:     history,
		events:      events,
	}
}

// RequestGenerationFromPrompt 使用给定提示词生成，调用方负责保证提示词非空
func (o *Orchestrator) RequestGenerationFromPrompt(ctx context.Context, prompt string) *entity.GenerationResult {
	return o.attempt(ctx, newAttemptID(), entity.GenerationSourcePrompt, func(ctx context.Context, attemptID string) *entity.GenerationResult {
		return o.generate(ctx, attemptID, prompt, false)
	})
}

// RequestGenerationFromActiveSelection 使用前台页面的当前选区生成
func (o *Orchestrator) RequestGenerationFromActiveSelection(ctx context.Context) *entity.GenerationResult {
	return o.attempt(ctx, newAttemptID(), entity.GenerationSourceSelection, o.fromSelection)
}

// Submit 异步执行命令，返回本次尝试的 ID
// 尝试在脱离调用方取消信号的 context 上运行，启动后不可取消
func (o *Orchestrator) Submit(ctx context.Context, msg message.Message) (string, error) {
	var (
		source entity.GenerationSource
		run    func(ctx context.Context, attemptID string) *entity.GenerationResult
	)
	switch m := msg.(type) {
	case message.GenerateFromPrompt:
		normalized := entity.NormalizePrompt(m.Prompt)
		if !normalized.IsValid {
			return "", apperrors.New(apperrors.CodeInvalidParam, "Prompt is required")
		}
		source = entity.GenerationSourcePrompt
		run = func(ctx context.Context, attemptID string) *entity.GenerationResult {
			return o.generate(ctx, attemptID, normalized.Text, normalized.WasTruncated)
		}
	case message.GenerateFromSelection:
		source = entity.GenerationSourceSelection
		run = o.fromSelection
	default:
		return "", apperrors.New(apperrors.CodeInvalidParam, "Unsupported command").
			WithDetail(string(msg.Kind()))
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closing {
		return "", ErrShuttingDown
	}

	attemptID := newAttemptID()
	detached := context.WithoutCancel(ctx)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		o.attempt(detached, attemptID, source, run)
	}()
	return attemptID, nil
}

// Wait 阻塞直到所有进行中的尝试结束
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

// Shutdown 拒绝新的提交并等待进行中的尝试结束
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attempt 包装单次尝试的追踪、日志与指标
func (o *Orchestrator) attempt(
	ctx context.Context,
	attemptID string,
	source entity.GenerationSource,
	run func(ctx context.Context, attemptID string) *entity.GenerationResult,
) *entity.GenerationResult {
	ctx = logger.WithContext(ctx, logger.AttemptIDKey, attemptID)
	ctx, span := tracer.Start(ctx, "generation.Attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("attempt.id", attemptID),
		attribute.String("generation.source", string(source)),
	)

	start := time.Now()
	logger.Info(ctx, "generation attempt started", "source", source)

	result := run(ctx, attemptID)

	status := "success"
	if !result.Succeeded() {
		status = result.ErrorKind
		span.SetAttributes(attribute.String("error.kind", result.ErrorKind))
	}
	metrics.GenerationTotal.WithLabelValues(string(source), status).Inc()
	metrics.GenerationDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
	logger.Info(ctx, "generation attempt finished",
		"source", source,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}

// fromSelection 解析前台页面并获取选区
func (o *Orchestrator) fromSelection(ctx context.Context, attemptID string) *entity.GenerationResult {
	page, err := o.contexts.ActiveContext(ctx)
	if err != nil {
		return o.fail(ctx, attemptID, apperrors.NoActiveContext(err))
	}
	ctx = logger.WithContext(ctx, logger.ContextIDKey, page.ID)

	sel, err := o.selection.CurrentSelection(ctx, page)
	if err != nil {
		return o.fail(ctx, attemptID, apperrors.SelectionUnavailable(err))
	}
	if sel == nil || !sel.IsValid {
		reason := ""
		if sel != nil {
			reason = sel.Error
		}
		return o.fail(ctx, attemptID, apperrors.EmptySelection(reason))
	}
	if sel.WasTruncated {
		logger.Debug(ctx, "selection truncated", "length", len([]rune(sel.Text)))
	}
	return o.generate(ctx, attemptID, sel.Text, sel.WasTruncated)
}

// generate 严格按顺序：读取凭证、开始事件、调用服务、写历史、成功事件
// truncated 随开始事件与结果一并返回
func (o *Orchestrator) generate(ctx context.Context, attemptID, prompt string, truncated bool) *entity.GenerationResult {
	credential, err := o.credentials.Credential(ctx)
	if err != nil {
		return o.fail(ctx, attemptID, err)
	}

	started := entity.NewStartedEvent(attemptID, prompt)
	started.WasTruncated = truncated
	o.events.Publish(ctx, started)

	imageURL, err := o.generator.Generate(ctx, prompt, credential)
	if err != nil {
		return o.fail(ctx, attemptID, err)
	}

	if _, err := o.history.Insert(ctx, prompt, imageURL); err != nil {
		return o.fail(ctx, attemptID, err)
	}

	o.events.Publish(ctx, entity.NewGeneratedEvent(attemptID, prompt, imageURL))
	return &entity.GenerationResult{Prompt: prompt, ImageURL: imageURL, WasTruncated: truncated}
}

// fail 发布失败事件，技术细节只进日志
func (o *Orchestrator) fail(ctx context.Context, attemptID string, err error) *entity.GenerationResult {
	code := apperrors.CodeOf(err)
	msg := apperrors.UserMessage(err)
	if code == apperrors.CodeUnknown {
		msg = apperrors.MsgGenerationFailed
	}

	logger.Warn(ctx, "generation attempt failed",
		"code", code,
		logger.Err(err),
	)
	o.events.Publish(ctx, entity.NewErrorEvent(attemptID, msg))
	return &entity.GenerationResult{ErrorKind: string(code), UserMessage: msg}
}

func newAttemptID() string {
	return uuid.NewString()
}
