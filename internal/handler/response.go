package handler

import (
	"net/http"

	apperrors "github.com/ding113/asset-cache-buster/internal/pkg/errors"
	"github.com/ding113/asset-cache-buster/internal/pkg/logger"
	"github.com/ding113/asset-cache-buster/internal/pkg/validator"
	"github.com/gin-gonic/gin"
)

// respondError 统一错误响应
func respondError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternalError("Internal server error").WithError(err)
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("Request failed")
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

// respondBindError 请求体绑定或校验失败
func respondBindError(c *gin.Context, err error) {
	appErr := apperrors.NewInvalidRequest("Invalid request body")
	if details := validator.ValidationErrors(err); len(details) > 0 {
		fields := make(map[string]interface{}, len(details))
		for k, v := range details {
			fields[k] = v
		}
		appErr = appErr.WithDetails(fields)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
