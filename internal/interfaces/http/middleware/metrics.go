package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"imagegen-api/pkg/metrics"
)

// Metrics Prometheus 指标采集中间件
// 事件流为长连接，只计数不记录耗时
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 使用路由模板作为标签
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method

		// 处理请求
		c.Next()

		// 记录指标
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		// SSE 连接时长不代表处理耗时
		if strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream") {
			return
		}
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
