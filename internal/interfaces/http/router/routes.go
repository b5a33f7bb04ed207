package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由，limit 仅作用于生成命令
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers, limit gin.HandlerFunc) {
	// 生成命令
	commands := v1.Group("")
	if limit != nil {
		commands.Use(limit)
	}
	{
		commands.POST("/generations", h.Generation.GenerateFromPrompt)
		commands.POST("/generations/selection", h.Generation.GenerateFromSelection)
		commands.POST("/messages", h.Generation.Dispatch)
	}

	// 生命周期事件 (SSE)
	v1.GET("/events", h.Events.Stream)

	// 历史记录
	history := v1.Group("/history")
	{
		history.GET("", h.History.List)
		history.DELETE("", h.History.Clear)
	}

	// 凭证设置
	settings := v1.Group("/settings")
	{
		settings.GET("/credential", h.Settings.GetCredential)
		settings.PUT("/credential", h.Settings.SetCredential)
		settings.DELETE("/credential", h.Settings.DeleteCredential)
	}

	// 页面上下文
	contexts := v1.Group("/contexts")
	{
		contexts.GET("", h.Contexts.List)
		contexts.POST("", h.Contexts.Register)
		contexts.PUT("/:id/active", h.Contexts.Activate)
		contexts.DELETE("/:id", h.Contexts.Remove)
	}
}
