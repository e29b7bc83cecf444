package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 表单中需要脱敏的字段
var maskedFields = map[string]bool{
	"password": true,
}

// Operation 记录一次业务操作：操作名、操作人、路由参数、表单、查询参数与结果
func Operation(logger *zap.Logger, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		actor := "anonymous"
		if s := CurrentSession(c); s.Authenticated {
			actor = s.Username
		}

		fields := []zap.Field{
			zap.String("operation", name),
			zap.String("actor", actor),
			zap.String("url", c.Request.URL.String()),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if v := c.Param("app_number"); v != "" {
			fields = append(fields, zap.String("app_number", v))
		}
		if v := c.Param("filename"); v != "" {
			fields = append(fields, zap.String("filename", v))
		}
		if v := c.Param("invoice_number"); v != "" {
			fields = append(fields, zap.String("invoice_number", v))
		}
		if len(c.Request.URL.Query()) > 0 {
			fields = append(fields, zap.Any("query", flatten(c.Request.URL.Query())))
		}

		c.Next()

		// 表单在处理函数解析之后才可读
		if c.Request.PostForm != nil && len(c.Request.PostForm) > 0 {
			fields = append(fields, zap.Any("form", maskForm(c.Request.PostForm)))
		}

		status := c.Writer.Status()
		outcome := "成功"
		if status >= 400 || len(c.Errors) > 0 {
			outcome = "失败"
		}
		fields = append(fields,
			zap.String("outcome", outcome),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		if outcome == "成功" {
			logger.Info("operation", fields...)
		} else {
			logger.Warn("operation", fields...)
		}
	}
}

func maskForm(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k, v := range form {
		if maskedFields[strings.ToLower(k)] {
			out[k] = "***"
			continue
		}
		out[k] = strings.Join(v, ",")
	}
	return out
}

func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = strings.Join(v, ",")
	}
	return out
}
