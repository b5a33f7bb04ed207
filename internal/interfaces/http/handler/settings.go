package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"imagegen-api/internal/application/settings"
	"imagegen-api/internal/interfaces/http/dto"
)

// CredentialService 凭证配置服务
type CredentialService interface {
	Status(ctx context.Context) (*settings.CredentialStatus, error)
	Set(ctx context.Context, raw string) error
	Remove(ctx context.Context) error
}

// SettingsHandler 设置处理器
type SettingsHandler struct {
	credentials CredentialService
}

// NewSettingsHandler 创建设置处理器
func NewSettingsHandler(credentials CredentialService) *SettingsHandler {
	return &SettingsHandler{credentials: credentials}
}

// GetCredential 查询凭证状态，只返回掩码
// @Summary 凭证状态
// @Tags Settings
// @Produce json
// @Success 200 {object} dto.Response[settings.CredentialStatus]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/settings/credential [get]
func (h *SettingsHandler) GetCredential(c *gin.Context) {
	status, err := h.credentials.Status(c.Request.Context())
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, status)
}

// SetCredential 设置凭证，成功后返回新的掩码状态
// @Summary 设置凭证
// @Tags Settings
// @Accept json
// @Produce json
// @Param body body dto.SetCredentialRequest true "API key"
// @Success 200 {object} dto.Response[settings.CredentialStatus]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/settings/credential [put]
func (h *SettingsHandler) SetCredential(c *gin.Context) {
	var req dto.SetCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "apiKey is required")
		return
	}
	if err := h.credentials.Set(c.Request.Context(), req.APIKey); err != nil {
		dto.AppError(c, err)
		return
	}
	h.GetCredential(c)
}

// DeleteCredential 删除凭证，重复删除无副作用
// @Summary 删除凭证
// @Tags Settings
// @Success 204
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/settings/credential [delete]
func (h *SettingsHandler) DeleteCredential(c *gin.Context) {
	if err := h.credentials.Remove(c.Request.Context()); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.NoContent(c)
}
