package httpclient

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client HTTP 客户端包装器
type Client struct {
	*resty.Client
}

// Config 客户端配置
type Config struct {
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		RetryCount:    2,
		RetryWaitTime: 200 * time.Millisecond,
	}
}

// New 创建新的 HTTP 客户端
// 只对幂等请求的网络错误和 5xx 重试，4xx 直接返回
func New(cfg Config) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		AddRetryCondition(shouldRetry).
		SetHeader("Accept", "application/json")

	return &Client{Client: client}
}

// shouldRetry POST 等非幂等请求不重试：服务端可能已经消费了一次性令牌
func shouldRetry(r *resty.Response, err error) bool {
	if r != nil && r.Request != nil && !isIdempotent(r.Request.Method) {
		return false
	}
	if err != nil {
		return true
	}
	return r != nil && r.StatusCode() >= http.StatusInternalServerError
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// NewDefault 创建默认配置的客户端
func NewDefault() *Client {
	return New(DefaultConfig())
}

// WithBaseURL 设置基础 URL
func (c *Client) WithBaseURL(url string) *Client {
	c.SetBaseURL(url)
	return c
}

// WithBearerAuth 设置 Bearer 认证，token 为空时不设置
func (c *Client) WithBearerAuth(token string) *Client {
	if token == "" {
		return c
	}
	c.SetAuthScheme("Bearer")
	c.SetAuthToken(token)
	return c
}
