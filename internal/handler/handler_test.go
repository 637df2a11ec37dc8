package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/ding113/asset-cache-buster/internal/cachebuster"
	"github.com/ding113/asset-cache-buster/internal/config"
	"github.com/ding113/asset-cache-buster/internal/nonce"
	"github.com/ding113/asset-cache-buster/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "admin-secret-token"

var testNow = time.Unix(1_700_000_000, 0)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	svc    *cachebuster.Service
	mem    *store.MemoryStore
	nonces *nonce.MemoryManager
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		mem:    store.NewMemory(),
		nonces: nonce.NewMemoryManager(time.Hour),
		now:    testNow,
	}
	env.svc = cachebuster.NewService(env.mem, cachebuster.ClockFunc(func() time.Time { return env.now }))

	cfg := &config.Config{
		Auth: config.AuthConfig{AdminToken: testAdminToken},
		CacheBuster: config.CacheBusterConfig{
			QueryKey:     "time",
			CookieName:   "asset_cache_time",
			RefreshParam: "update_css_js",
			NonceTTL:     time.Hour,
		},
	}
	env.router = NewRouter(Deps{
		Service: env.svc,
		Nonces:  env.nonces,
		Store:   env.mem,
		Config:  cfg,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, admin bool, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) saveSettings(t *testing.T, raw map[string]any) {
	t.Helper()
	_, err := e.svc.SaveSettings(context.Background(), raw)
	require.NoError(t, err)
}

func (e *testEnv) clearTime(t *testing.T) int64 {
	t.Helper()
	state, err := e.svc.ClockState(context.Background())
	require.NoError(t, err)
	return state.LastManualClearAt
}

func (e *testEnv) issue(t *testing.T, action string) string {
	t.Helper()
	token, err := e.nonces.Issue(context.Background(), action)
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

type errorBody struct {
	Error struct {
		Type    string         `json:"type"`
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/actions/cache/settings", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_required", decode[errorBody](t, w).Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/actions/cache/settings", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, w).Error.Code)

	w = env.do(t, http.MethodGet, "/api/actions/cache/settings", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[SettingsResponse](t, w)
	assert.Equal(t, cachebuster.DefaultSettings(), resp.Settings)
}

func TestAdminAuth_EmptyConfiguredTokenRejectsAll(t *testing.T) {
	env := newTestEnv(t)
	env.router = NewRouter(Deps{
		Service: env.svc,
		Nonces:  env.nonces,
		Store:   env.mem,
		Config:  &config.Config{CacheBuster: config.CacheBusterConfig{QueryKey: "time", RefreshParam: "update_css_js"}},
	})

	w := env.do(t, http.MethodGet, "/api/actions/cache/settings", nil, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateSettings_Sanitizes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/actions/cache/settings", map[string]any{
		"strategy":            "  Every_Period ",
		"period_minutes":      0,
		"show_manual_trigger": "1",
		"unknown":             true,
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SettingsResponse](t, w)
	assert.Equal(t, cachebuster.Settings{
		Strategy:          cachebuster.StrategyOnPeriod,
		PeriodMinutes:     1,
		ShowManualTrigger: true,
	}, resp.Settings)

	w = env.do(t, http.MethodGet, "/api/actions/cache/settings", nil, true)
	assert.Equal(t, resp.Settings, decode[SettingsResponse](t, w).Settings)
}

func TestUpdateSettings_RejectsNonObject(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/actions/cache/settings", []int{1, 2}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueNonce_UnknownAction(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/actions/cache/nonces", map[string]string{"action": "delete_everything"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[errorBody](t, w)
	assert.Equal(t, "invalid_request", body.Error.Code)
	assert.Contains(t, body.Error.Details, "action")
}

func TestClear_RequiresValidNonce(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/actions/cache/clear", map[string]string{"nonce": "forged"}, true)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "invalid_nonce", decode[errorBody](t, w).Error.Code)
	assert.Zero(t, env.clearTime(t))

	// 为其他动作签发的令牌不能用于手动刷新
	wrong := env.issue(t, nonce.ActionUpdateCSSJS)
	w = env.do(t, http.MethodPost, "/api/actions/cache/clear", map[string]string{"nonce": wrong}, true)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, env.clearTime(t))
}

func TestClear_WithNonce(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/actions/cache/nonces", map[string]string{"action": nonce.ActionClearCacheTime}, true)
	require.Equal(t, http.StatusOK, w.Code)
	issued := decode[IssueNonceResponse](t, w)
	assert.Equal(t, int64(3600), issued.ExpiresIn)

	w = env.do(t, http.MethodPost, "/api/actions/cache/clear", map[string]string{"nonce": issued.Nonce}, true)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[cachebuster.ClockState](t, w)
	assert.Equal(t, testNow.Unix(), state.LastManualClearAt)
	assert.Equal(t, testNow.Unix(), env.clearTime(t))

	// 令牌只能使用一次
	env.now = env.now.Add(time.Minute)
	w = env.do(t, http.MethodPost, "/api/actions/cache/clear", map[string]string{"nonce": issued.Nonce}, true)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, testNow.Unix(), env.clearTime(t))
}

func TestToken_OnEveryRequest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/actions/cache/token", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[TokenResponse](t, w)
	assert.Equal(t, testNow.Unix(), resp.Token)
	assert.Equal(t, "time", resp.QueryKey)
	assert.Equal(t, "every_time", resp.Strategy)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Nil(t, findCookie(w, "asset_cache_time"))
}

func TestToken_OnPeriodAnchorCookie(t *testing.T) {
	env := newTestEnv(t)
	env.saveSettings(t, map[string]any{"strategy": "every_period", "period_minutes": 10})

	w := env.do(t, http.MethodGet, "/api/actions/cache/token", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testNow.Unix(), decode[TokenResponse](t, w).Token)

	cookie := findCookie(w, "asset_cache_time")
	require.NotNil(t, cookie)
	assert.Equal(t, strconv.FormatInt(testNow.Unix(), 10), cookie.Value)
	assert.Equal(t, 600, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)

	// 周期内沿用锚点，不再下发 Cookie
	env.now = testNow.Add(5 * time.Minute)
	w = env.do(t, http.MethodGet, "/api/actions/cache/token", nil, false, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testNow.Unix(), decode[TokenResponse](t, w).Token)
	assert.Nil(t, findCookie(w, "asset_cache_time"))

	// 周期结束后重新签发
	env.now = testNow.Add(11 * time.Minute)
	w = env.do(t, http.MethodGet, "/api/actions/cache/token", nil, false, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, env.now.Unix(), decode[TokenResponse](t, w).Token)
	assert.NotNil(t, findCookie(w, "asset_cache_time"))
}

func TestToken_IgnoresUntrustedAnchor(t *testing.T) {
	env := newTestEnv(t)
	env.saveSettings(t, map[string]any{"strategy": "every_period", "period_minutes": 10})

	for _, v := range []string{"not-a-number", "-5", strconv.FormatInt(testNow.Add(time.Hour).Unix(), 10)} {
		w := env.do(t, http.MethodGet, "/api/actions/cache/token", nil, false, &http.Cookie{Name: "asset_cache_time", Value: v})
		require.Equal(t, http.StatusOK, w.Code, v)
		assert.Equal(t, testNow.Unix(), decode[TokenResponse](t, w).Token, v)
		assert.NotNil(t, findCookie(w, "asset_cache_time"), v)
	}
}

func TestRewrite(t *testing.T) {
	env := newTestEnv(t)
	env.saveSettings(t, map[string]any{"strategy": "never"})

	urls := []string{"/wp/style.css?ver=6.4&time=5#top", "https://cdn.example.com/app.js"}

	// 从未手动刷新过，版本号为 0，原样返回
	w := env.do(t, http.MethodPost, "/api/actions/cache/rewrite", map[string]any{"urls": urls}, false)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RewriteResponse](t, w)
	assert.Zero(t, resp.Token)
	assert.Equal(t, urls, resp.URLs)

	_, err := env.svc.ClearNow(context.Background(), cachebuster.SourceAPI)
	require.NoError(t, err)

	w = env.do(t, http.MethodPost, "/api/actions/cache/rewrite", map[string]any{"urls": urls}, false)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[RewriteResponse](t, w)
	ts := strconv.FormatInt(testNow.Unix(), 10)
	assert.Equal(t, []string{
		"/wp/style.css?ver=6.4&time=" + ts + "#top",
		"https://cdn.example.com/app.js?time=" + ts,
	}, resp.URLs)
}

func TestRewrite_RequiresURLs(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/actions/cache/rewrite", map[string]any{"urls": []string{}}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshLink_DisabledByDefault(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/actions/cache/refresh-link?url=/blog", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "feature_disabled", decode[errorBody](t, w).Error.Code)
}

func TestRefreshTrigger(t *testing.T) {
	env := newTestEnv(t)
	env.saveSettings(t, map[string]any{"strategy": "never", "show_manual_trigger": true})

	w := env.do(t, http.MethodGet, "/api/actions/cache/refresh-link?url=%2Fblog%2Fpost%3Fa%3D1", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	link := decode[RefreshLinkResponse](t, w).URL
	assert.Contains(t, link, "/blog/post?a=1&update_css_js=")

	w = env.do(t, http.MethodGet, link, nil, false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/blog/post?a=1", w.Header().Get("Location"))
	assert.Equal(t, testNow.Unix(), env.clearTime(t))

	// 重放同一链接被拒绝，时钟不变
	env.now = testNow.Add(time.Hour)
	w = env.do(t, http.MethodGet, link, nil, false)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, testNow.Unix(), env.clearTime(t))
}

func TestRefreshTrigger_RedirectStaysOnSameHost(t *testing.T) {
	env := newTestEnv(t)
	env.saveSettings(t, map[string]any{"strategy": "never", "show_manual_trigger": true})

	token := env.issue(t, nonce.ActionUpdateCSSJS)
	w := env.do(t, http.MethodGet, "//evil.example/landing?x=1&update_css_js="+token, nil, false)
	require.Equal(t, http.StatusFound, w.Code)

	location := w.Header().Get("Location")
	assert.Equal(t, "/evil.example/landing?x=1", location)

	parsed, err := url.Parse(location)
	require.NoError(t, err)
	assert.Empty(t, parsed.Host)
	assert.Equal(t, testNow.Unix(), env.clearTime(t))
}

func TestRefreshRedirectTarget(t *testing.T) {
	cases := []struct{ raw, want string }{
		{"/blog/post?a=1&update_css_js=n", "/blog/post?a=1"},
		{"/?update_css_js=n", "/"},
		{"//evil.example/x?update_css_js=n", "/evil.example/x"},
		{"///evil.example", "/evil.example"},
		{"/%5Cevil.example/x", "/%5Cevil.example/x"},
	}
	for _, tc := range cases {
		u, err := url.ParseRequestURI(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, refreshRedirectTarget(u, "update_css_js"), tc.raw)
	}

	// 未转义的反斜杠同样不能留在开头
	u := &url.URL{Path: "\\\\evil.example/x"}
	assert.Equal(t, "/%5C%5Cevil.example/x", refreshRedirectTarget(u, "update_css_js"))
}

func TestRefreshTrigger_IgnoredWhenDisabled(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, nonce.ActionUpdateCSSJS)

	w := env.do(t, http.MethodGet, "/blog?update_css_js="+token, nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, env.clearTime(t))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/actions/cache/token", nil, false)

	w := env.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tokens_computed_total")
}
