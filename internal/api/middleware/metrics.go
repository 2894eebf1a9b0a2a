package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/metrics"
)

// Metrics 按路由模板统计请求数与耗时, 未匹配的路由统一记为 unmatched
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
