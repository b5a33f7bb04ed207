package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"imagegen-api/internal/interfaces/http/dto"
	"imagegen-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// Requests 窗口内允许的请求数
	Requests int
	// Window 计数窗口
	Window time.Duration
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 与路由限流，limiter 为 nil 时不限流
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	// 如果未启用限流，返回空中间件
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	// 设置默认值
	if cfg.Requests <= 0 {
		cfg.Requests = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(c *gin.Context) {
		// 构建限流 Key：client_ip:route
		key := c.ClientIP() + ":" + c.FullPath()

		// 检查限流

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.Requests, cfg.Window)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", logger.Err(err))
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Code:    http.StatusTooManyRequests,
				Message: "rate limit exceeded",
				TraceID: c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}
