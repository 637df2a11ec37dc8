package handler

import (
	"crypto/subtle"
	"strings"
	"time"

	apperrors "github.com/ding113/asset-cache-buster/internal/pkg/errors"
	"github.com/ding113/asset-cache-buster/internal/pkg/logger"
	"github.com/ding113/asset-cache-buster/internal/pkg/utils"
	"github.com/gin-gonic/gin"
)

const requestIDKey = "request_id"

// RequestID 为每个请求分配 ID，优先沿用上游传入的 X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = utils.GenerateRequestID()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger 请求日志中间件
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log := logger.WithRequestID(c.GetString(requestIDKey))
		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request")
	}
}

// AdminAuth 管理员令牌认证
// 未配置令牌时拒绝所有请求
func AdminAuth(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			respondError(c, apperrors.NewAuthenticationError("Admin token required", apperrors.CodeTokenRequired))
			return
		}

		if adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
			logger.Warn().
				Str("client_ip", c.ClientIP()).
				Str("token", utils.MaskToken(token)).
				Msg("Rejected admin request")
			respondError(c, apperrors.NewAuthenticationError("Invalid admin token", apperrors.CodeUnauthorized))
			return
		}

		c.Next()
	}
}
