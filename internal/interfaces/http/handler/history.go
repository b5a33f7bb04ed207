package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/interfaces/http/dto"
)

// HistoryService 历史记录服务
type HistoryService interface {
	GetAll(ctx context.Context) ([]*entity.HistoryItem, error)
	Clear(ctx context.Context) error
}

// HistoryHandler 历史记录处理器
type HistoryHandler struct {
	history HistoryService
}

// NewHistoryHandler 创建历史记录处理器
func NewHistoryHandler(history HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List 获取历史记录，最新在前
// @Summary 历史记录
// @Tags History
// @Produce json
// @Success 200 {object} dto.Response[dto.HistoryListResponse]
// @Router /v1/history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	items, err := h.history.GetAll(c.Request.Context())
	if err != nil {
		dto.AppError(c, err)
		return
	}

	out := make([]*dto.HistoryItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, &dto.HistoryItemResponse{
			ID:        it.ID,
			Prompt:    it.Prompt,
			ImageURL:  it.ImageURL,
			Timestamp: it.Timestamp,
		})
	}
	dto.Success(c, dto.HistoryListResponse{Items: out, Total: len(out)})
}

// Clear 清空历史记录
// @Summary 清空历史记录
// @Tags History
// @Success 204
// @Router /v1/history [delete]
func (h *HistoryHandler) Clear(c *gin.Context) {
	if err := h.history.Clear(c.Request.Context()); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.NoContent(c)
}
