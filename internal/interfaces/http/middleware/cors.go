package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// CORS 跨域中间件
// 只放行白名单中的源（通常是扩展源 chrome-extension://<id>），名单为空时仅允许同源请求
func CORS(cfg CORSConfig) gin.HandlerFunc {
	// 设置默认值
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = []string{"Origin", "Content-Type", "X-Request-ID", "Last-Event-ID"}
	}

	// 通配源会把凭据与历史暴露给任意网页，这里直接丢弃
	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "" || o == "*" {
			continue
		}
		origins = append(origins, o)
	}

	c := cors.Config{
		AllowOrigins:           origins,
		AllowMethods:           cfg.AllowedMethods,
		AllowHeaders:           cfg.AllowedHeaders,
		ExposeHeaders:          []string{"X-Request-ID", "X-Trace-ID"},
		AllowBrowserExtensions: true,
		MaxAge:                 12 * time.Hour,
	}
	// 空名单：跨源请求（含预检）一律 403，同源请求不受影响
	if len(origins) == 0 {
		c.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(c)
}
