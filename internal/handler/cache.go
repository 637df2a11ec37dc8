package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ding113/asset-cache-buster/internal/cachebuster"
	"github.com/ding113/asset-cache-buster/internal/config"
	"github.com/ding113/asset-cache-buster/internal/metrics"
	"github.com/ding113/asset-cache-buster/internal/nonce"
	apperrors "github.com/ding113/asset-cache-buster/internal/pkg/errors"
	"github.com/ding113/asset-cache-buster/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// CacheHandler 版本号相关接口
type CacheHandler struct {
	svc    *cachebuster.Service
	nonces nonce.Manager
	cfg    config.CacheBusterConfig
}

// NewCacheHandler 创建 CacheHandler
func NewCacheHandler(svc *cachebuster.Service, nonces nonce.Manager, cfg config.CacheBusterConfig) *CacheHandler {
	return &CacheHandler{svc: svc, nonces: nonces, cfg: cfg}
}

// SettingsResponse 设置与时钟状态
type SettingsResponse struct {
	Settings   cachebuster.Settings   `json:"settings"`
	ClockState cachebuster.ClockState `json:"clock_state"`
}

// IssueNonceRequest 签发验证令牌请求
type IssueNonceRequest struct {
	Action string `json:"action" binding:"required,nonce_action"`
}

// IssueNonceResponse 签发验证令牌响应
type IssueNonceResponse struct {
	Nonce     string `json:"nonce"`
	Action    string `json:"action"`
	ExpiresIn int64  `json:"expires_in"`
}

// ClearRequest 手动刷新请求
type ClearRequest struct {
	Nonce string `json:"nonce" form:"nonce"`
}

// TokenResponse 当前版本号
type TokenResponse struct {
	Token    int64  `json:"token"`
	QueryKey string `json:"query_key"`
	Strategy string `json:"strategy"`
}

// RewriteRequest 批量改写请求
type RewriteRequest struct {
	URLs []string `json:"urls" binding:"required,min=1,max=500"`
}

// RewriteResponse 批量改写响应
type RewriteResponse struct {
	TokenResponse
	URLs []string `json:"urls"`
}

// RefreshLinkResponse 页面级刷新链接
type RefreshLinkResponse struct {
	URL string `json:"url"`
}

// GetSettings GET /settings
func (h *CacheHandler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()

	settings, err := h.svc.Settings(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	state, err := h.svc.ClockState(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SettingsResponse{Settings: settings, ClockState: state})
}

// UpdateSettings PUT /settings
// 任意 JSON 对象都会被规范化后保存，不会因为字段取值被拒绝
func (h *CacheHandler) UpdateSettings(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	settings, err := h.svc.SaveSettings(ctx, raw)
	if err != nil {
		respondError(c, err)
		return
	}
	state, err := h.svc.ClockState(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SettingsResponse{Settings: settings, ClockState: state})
}

// IssueNonce POST /nonces
func (h *CacheHandler) IssueNonce(c *gin.Context) {
	var req IssueNonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	token, err := h.nonces.Issue(c.Request.Context(), req.Action)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, IssueNonceResponse{
		Nonce:     token,
		Action:    req.Action,
		ExpiresIn: int64(h.nonces.TTL().Seconds()),
	})
}

// Clear POST /clear
// 必须携带为 clear_cache_time 签发的验证令牌，否则不做任何修改
func (h *CacheHandler) Clear(c *gin.Context) {
	var req ClearRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	if !h.verifyNonce(c, nonce.ActionClearCacheTime, req.Nonce) {
		return
	}

	state, err := h.svc.ClearNow(ctx, cachebuster.SourceAPI)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// RefreshLink GET /refresh-link?url=
// 返回带有一次性刷新参数的页面链接，仅在开启手动刷新入口时可用
func (h *CacheHandler) RefreshLink(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		respondError(c, apperrors.NewInvalidRequest("url is required"))
		return
	}

	ctx := c.Request.Context()
	settings, err := h.svc.Settings(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if !settings.ShowManualTrigger {
		respondError(c, apperrors.NewFeatureDisabled("Manual refresh trigger"))
		return
	}

	token, err := h.nonces.Issue(ctx, nonce.ActionUpdateCSSJS)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, RefreshLinkResponse{
		URL: cachebuster.SetQueryParam(target, h.cfg.RefreshParam, token),
	})
}

// Token GET /token
func (h *CacheHandler) Token(c *gin.Context) {
	resp, ok := h.computeToken(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Rewrite POST /rewrite
// 渲染阶段的 URL 改写：每个 URL 只追加一次版本号参数
func (h *CacheHandler) Rewrite(c *gin.Context) {
	var req RewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, ok := h.computeToken(c)
	if !ok {
		return
	}

	urls := cachebuster.NewRewriter(h.cfg.QueryKey, resp.Token).RewriteAll(req.URLs)
	metrics.RecordRewrites(len(urls))

	c.JSON(http.StatusOK, RewriteResponse{TokenResponse: resp, URLs: urls})
}

// RefreshTrigger 页面级强制刷新中间件
//
// GET 请求携带 refresh_param 且开启了手动刷新入口时，校验一次性令牌、
// 推进版本号下限，并重定向到去掉该参数的当前地址。
func (h *CacheHandler) RefreshTrigger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		token, present := c.GetQuery(h.cfg.RefreshParam)
		if !present {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		settings, err := h.svc.Settings(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		if !settings.ShowManualTrigger {
			c.Next()
			return
		}

		if !h.verifyNonce(c, nonce.ActionUpdateCSSJS, token) {
			return
		}

		if _, err := h.svc.ClearNow(ctx, cachebuster.SourceRefreshLink); err != nil {
			respondError(c, err)
			return
		}

		c.Redirect(http.StatusFound, refreshRedirectTarget(c.Request.URL, h.cfg.RefreshParam))
		c.Abort()
	}
}

// refreshRedirectTarget 去掉刷新参数后的当前地址
// 路径开头的多个 / 或 \ 折叠为一个，否则 //host/x 会被当作跨站地址
func refreshRedirectTarget(u *url.URL, param string) string {
	target := "/" + strings.TrimLeft(u.EscapedPath(), "/\\")
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return cachebuster.RemoveQueryParam(target, param)
}

// verifyNonce 校验令牌，失败时写入 403 并返回 false
func (h *CacheHandler) verifyNonce(c *gin.Context, action, token string) bool {
	ok, err := h.nonces.Verify(c.Request.Context(), action, token)
	if err != nil {
		respondError(c, err)
		return false
	}
	metrics.RecordNonce(action, ok)
	if !ok {
		logger.Warn().
			Str("action", action).
			Str("client_ip", c.ClientIP()).
			Msg("Rejected request with invalid verification token")
		respondError(c, apperrors.NewInvalidNonce(action))
		return false
	}
	return true
}

// computeToken 读取锚点 Cookie，计算版本号，必要时写回新锚点
func (h *CacheHandler) computeToken(c *gin.Context) (TokenResponse, bool) {
	var anchor *int64
	if raw, err := c.Cookie(h.cfg.CookieName); err == nil {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			anchor = &v
		}
	}

	res, err := h.svc.Token(c.Request.Context(), anchor)
	if err != nil {
		respondError(c, err)
		return TokenResponse{}, false
	}

	if res.Anchor != nil {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(
			h.cfg.CookieName,
			strconv.FormatInt(res.Anchor.IssuedAt, 10),
			int(res.Anchor.TTL().Seconds()),
			"/",
			"",
			h.cfg.CookieSecure,
			true,
		)
	}

	c.Header("Cache-Control", "no-store")
	return TokenResponse{
		Token:    res.Token,
		QueryKey: h.cfg.QueryKey,
		Strategy: res.Strategy.String(),
	}, true
}
