package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagegen-api/pkg/logger"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// RequestID 请求 ID 注入中间件
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 优先沿用上游传入的请求 ID
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// 写入 gin 上下文与日志上下文
		c.Set("request_id", requestID)
		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		// 回写响应头
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}
