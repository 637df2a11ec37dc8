package handler

import (
	"net/http"

	"github.com/ding113/asset-cache-buster/internal/cachebuster"
	"github.com/ding113/asset-cache-buster/internal/config"
	"github.com/ding113/asset-cache-buster/internal/nonce"
	apperrors "github.com/ding113/asset-cache-buster/internal/pkg/errors"
	"github.com/ding113/asset-cache-buster/internal/pkg/validator"
	"github.com/ding113/asset-cache-buster/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps 路由依赖
type Deps struct {
	Service *cachebuster.Service
	Nonces  nonce.Manager
	Store   store.Store
	Config  *config.Config
}

// NewRouter 设置路由
func NewRouter(deps Deps) *gin.Engine {
	validator.RegisterNonceAction(nonce.Actions...)
	validator.Init()

	h := NewCacheHandler(deps.Service, deps.Nonces, deps.Config.CacheBuster)

	router := gin.New()

	// 添加中间件
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger())
	// 全局中间件同样作用于 NoRoute，刷新链接可以指向任意页面路径
	router.Use(h.RefreshTrigger())

	router.GET("/health", healthCheck(deps.Store))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/actions/cache")
	{
		api.GET("/token", h.Token)
		api.POST("/rewrite", h.Rewrite)

		admin := api.Group("", AdminAuth(deps.Config.Auth.AdminToken))
		admin.GET("/settings", h.GetSettings)
		admin.PUT("/settings", h.UpdateSettings)
		admin.POST("/nonces", h.IssueNonce)
		admin.POST("/clear", h.Clear)
		admin.GET("/refresh-link", h.RefreshLink)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, apperrors.NewNotFoundError("Route"))
	})

	return router
}

// healthCheck 健康检查处理器
func healthCheck(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		pinger, ok := s.(store.Pinger)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
			return
		}

		if err := pinger.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"store":  "disconnected",
				"error":  err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"store":  "connected",
		})
	}
}
