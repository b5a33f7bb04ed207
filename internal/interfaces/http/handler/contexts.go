package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/infrastructure/pagecontext"
	"imagegen-api/internal/interfaces/http/dto"
	"imagegen-api/pkg/logger"
)

// ContextRegistry 页面上下文注册表
type ContextRegistry interface {
	Register(title, pageURL, endpoint string) (*entity.PageContext, error)
	Activate(id string) (*entity.PageContext, error)
	Remove(id string) error
	List() []*entity.PageContext
}

// ContextHandler 页面上下文处理器
type ContextHandler struct {
	registry ContextRegistry
}

// NewContextHandler 创建页面上下文处理器
func NewContextHandler(registry ContextRegistry) *ContextHandler {
	return &ContextHandler{registry: registry}
}

// List 列出已注册页面
// @Summary 页面上下文列表
// @Tags Contexts
// @Produce json
// @Success 200 {object} dto.Response[[]entity.PageContext]
// @Router /v1/contexts [get]
func (h *ContextHandler) List(c *gin.Context) {
	dto.Success(c, h.registry.List())
}

// Register 注册页面并设为前台
// @Summary 注册页面上下文
// @Tags Contexts
// @Accept json
// @Produce json
// @Param body body dto.RegisterContextRequest true "页面信息"
// @Success 201 {object} dto.Response[entity.PageContext]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/contexts [post]
func (h *ContextHandler) Register(c *gin.Context) {
	var req dto.RegisterContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "endpoint is required")
		return
	}
	pc, err := h.registry.Register(req.Title, req.URL, req.Endpoint)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	logger.Info(c.Request.Context(), "page context registered", "context_id", pc.ID, "url", pc.URL)
	dto.Created(c, pc)
}

// Activate 切换前台页面
// @Summary 切换前台页面
// @Tags Contexts
// @Produce json
// @Param id path string true "上下文 ID"
// @Success 200 {object} dto.Response[entity.PageContext]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/contexts/{id}/active [put]
func (h *ContextHandler) Activate(c *gin.Context) {
	pc, err := h.registry.Activate(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.Success(c, pc)
}

// Remove 注销页面
// @Summary 注销页面上下文
// @Tags Contexts
// @Param id path string true "上下文 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/contexts/{id} [delete]
func (h *ContextHandler) Remove(c *gin.Context) {
	if err := h.registry.Remove(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	dto.NoContent(c)
}

func (h *ContextHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, pagecontext.ErrContextNotFound) {
		dto.NotFound(c, "page context not found")
		return
	}
	dto.InternalError(c, "internal server error")
}
