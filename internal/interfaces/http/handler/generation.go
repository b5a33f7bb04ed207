// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/message"
	"imagegen-api/internal/interfaces/http/dto"
)

// CommandSubmitter 异步执行生成命令
type CommandSubmitter interface {
	Submit(ctx context.Context, msg message.Message) (string, error)
}

// GenerationHandler 生成命令处理器
type GenerationHandler struct {
	orchestrator CommandSubmitter
}

// NewGenerationHandler 创建生成命令处理器
func NewGenerationHandler(orchestrator CommandSubmitter) *GenerationHandler {
	return &GenerationHandler{orchestrator: orchestrator}
}

// GenerateFromPrompt 使用提示词生成
// @Summary 提示词生成
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequest true "提示词"
// @Success 202 {object} dto.Response[dto.GenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/generations [post]
func (h *GenerationHandler) GenerateFromPrompt(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}

	normalized := entity.NormalizePrompt(req.Prompt)
	if !normalized.IsValid {
		dto.BadRequest(c, "Please enter a prompt")
		return
	}

	// 原始提示词交给编排器规范化，截断标记随开始事件下发
	attemptID, err := h.orchestrator.Submit(c.Request.Context(), message.GenerateFromPrompt{Prompt: req.Prompt})
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Accepted(c, dto.GenerateResponse{
		AttemptID:    attemptID,
		Prompt:       normalized.Text,
		WasTruncated: normalized.WasTruncated,
	})
}

// GenerateFromSelection 使用前台页面选区生成
// @Summary 选区生成
// @Tags Generation
// @Produce json
// @Success 202 {object} dto.Response[dto.GenerateResponse]
// @Router /v1/generations/selection [post]
func (h *GenerationHandler) GenerateFromSelection(c *gin.Context) {
	attemptID, err := h.orchestrator.Submit(c.Request.Context(), message.GenerateFromSelection{})
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Accepted(c, dto.GenerateResponse{AttemptID: attemptID})
}

// Dispatch 按类型标签分发命令消息
// @Summary 命令消息
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body dto.MessageRequest true "消息"
// @Success 202 {object} dto.Response[dto.GenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/messages [post]
func (h *GenerationHandler) Dispatch(c *gin.Context) {
	var req dto.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid message")
		return
	}

	msg, err := message.Decode(message.Envelope{Type: message.Kind(req.Type), Payload: req.Payload})
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	attemptID, err := h.orchestrator.Submit(c.Request.Context(), msg)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Accepted(c, dto.GenerateResponse{AttemptID: attemptID})
}
