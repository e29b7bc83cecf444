package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionKey   = "session"
	requestIDKey = "request_id"
)

// Logger 日志中间件
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString(requestIDKey)),
		}

		if s := CurrentSession(c); s.Authenticated {
			fields = append(fields, zap.String("admin", s.Username))
		}

		if status >= 500 {
			logger.Error("Server error", fields...)
		} else if status >= 400 {
			logger.Warn("Client error", fields...)
		} else {
			logger.Info("Request", fields...)
		}
	}
}

// RequestID 请求ID中间件
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// BodyLimit 限制请求体大小
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			if c.Request.ContentLength > maxBytes {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
					"code":    41300,
					"message": "请求内容过大",
				})
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// SessionResolver 将 cookie 中的令牌解析为会话
type SessionResolver interface {
	Authenticate(ctx context.Context, token string) session.Session
}

// LoadSession 为每个请求放入会话上下文，未登录时为匿名会话
func LoadSession(resolver SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session.Anonymous()
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			s = resolver.Authenticate(c.Request.Context(), token)
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// CurrentSession 当前请求的会话
func CurrentSession(c *gin.Context) session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(session.Session); ok {
			return s
		}
	}
	return session.Anonymous()
}

// RequireAdmin 管理员登录检查：浏览器请求跳转登录页，其余返回 401
func RequireAdmin(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentSession(c).Authenticated {
			c.Next()
			return
		}

		if wantsHTML(c) {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    40100,
			"message": "请先登录",
		})
	}
}

func wantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html")
}
