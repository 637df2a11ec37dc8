// Package client 管理 API 的 Go 客户端，供 cachectl 与其他服务调用
package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ding113/asset-cache-buster/internal/cachebuster"
	"github.com/ding113/asset-cache-buster/internal/handler"
	"github.com/ding113/asset-cache-buster/internal/nonce"
	apperrors "github.com/ding113/asset-cache-buster/internal/pkg/errors"
	"github.com/ding113/asset-cache-buster/internal/pkg/httpclient"
	"github.com/go-resty/resty/v2"
)

const basePath = "/api/actions/cache"

// Client 版本号服务客户端
type Client struct {
	http *httpclient.Client
}

// New 创建客户端，adminToken 为空时只能调用公开接口
func New(baseURL, adminToken string, cfg httpclient.Config) *Client {
	hc := httpclient.New(cfg).
		WithBaseURL(baseURL).
		WithBearerAuth(adminToken)
	return &Client{http: hc}
}

// GetSettings 读取设置与时钟状态
func (c *Client) GetSettings(ctx context.Context) (*handler.SettingsResponse, error) {
	var out handler.SettingsResponse
	if err := c.do(ctx, http.MethodGet, "/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSettings 保存设置，服务端会规范化任意输入
func (c *Client) UpdateSettings(ctx context.Context, raw map[string]any) (*handler.SettingsResponse, error) {
	var out handler.SettingsResponse
	if err := c.do(ctx, http.MethodPut, "/settings", raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IssueNonce 为动作签发一次性验证令牌
func (c *Client) IssueNonce(ctx context.Context, action string) (*handler.IssueNonceResponse, error) {
	var out handler.IssueNonceResponse
	if err := c.do(ctx, http.MethodPost, "/nonces", handler.IssueNonceRequest{Action: action}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearWithNonce 使用已有令牌手动刷新
func (c *Client) ClearWithNonce(ctx context.Context, token string) (*cachebuster.ClockState, error) {
	var out cachebuster.ClockState
	if err := c.do(ctx, http.MethodPost, "/clear", handler.ClearRequest{Nonce: token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clear 签发令牌后立即手动刷新
func (c *Client) Clear(ctx context.Context) (*cachebuster.ClockState, error) {
	issued, err := c.IssueNonce(ctx, nonce.ActionClearCacheTime)
	if err != nil {
		return nil, fmt.Errorf("issue nonce: %w", err)
	}
	return c.ClearWithNonce(ctx, issued.Nonce)
}

// RefreshLink 获取页面级刷新链接
func (c *Client) RefreshLink(ctx context.Context, pageURL string) (string, error) {
	var out handler.RefreshLinkResponse
	req := c.http.R().SetQueryParam("url", pageURL)
	if err := c.send(ctx, req, http.MethodGet, "/refresh-link", &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Token 读取当前版本号
func (c *Client) Token(ctx context.Context) (*handler.TokenResponse, error) {
	var out handler.TokenResponse
	if err := c.do(ctx, http.MethodGet, "/token", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rewrite 批量改写资源 URL
func (c *Client) Rewrite(ctx context.Context, urls []string) (*handler.RewriteResponse, error) {
	var out handler.RewriteResponse
	if err := c.do(ctx, http.MethodPost, "/rewrite", handler.RewriteRequest{URLs: urls}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R()
	if body != nil {
		req.SetBody(body)
	}
	return c.send(ctx, req, method, path, out)
}

func (c *Client) send(ctx context.Context, req *resty.Request, method, path string, out any) error {
	var errResp apperrors.ErrorResponse
	resp, err := req.
		SetContext(ctx).
		SetResult(out).
		SetError(&errResp).
		Execute(method, basePath+path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.IsError() {
		body := errResp.Error
		if body.Message == "" {
			body.Message = resp.Status()
		}
		return &apperrors.AppError{
			Type:       body.Type,
			Message:    body.Message,
			Code:       body.Code,
			HTTPStatus: resp.StatusCode(),
			Details:    body.Details,
		}
	}
	return nil
}
