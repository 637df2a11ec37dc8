package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ding113/asset-cache-buster/internal/cachebuster"
	"github.com/ding113/asset-cache-buster/internal/config"
	"github.com/ding113/asset-cache-buster/internal/handler"
	"github.com/ding113/asset-cache-buster/internal/nonce"
	"github.com/ding113/asset-cache-buster/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminToken = "cli-test-token"

var fixedNow = time.Unix(1_700_000_000, 0)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	srv := httptest.NewServer(handler.NewRouter(handler.Deps{
		Service: cachebuster.NewService(mem, cachebuster.ClockFunc(func() time.Time { return fixedNow })),
		Nonces:  nonce.NewMemoryManager(time.Hour),
		Store:   mem,
		Config: &config.Config{
			Auth: config.AuthConfig{AdminToken: adminToken},
			CacheBuster: config.CacheBusterConfig{
				QueryKey:     "time",
				CookieName:   "asset_cache_time",
				RefreshParam: "update_css_js",
			},
		},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut

	argv := append([]string{"cachectl", "--server", srv.URL, "--token", adminToken}, args...)
	err := app.Run(context.Background(), argv)
	return out.String(), err
}

func TestSettingsSetKeepsUnsetFields(t *testing.T) {
	srv := newServer(t)

	_, err := run(t, srv, "settings", "set", "--show-trigger")
	require.NoError(t, err)

	out, err := run(t, srv, "settings", "set", "--strategy", "every_period", "--period", "30")
	require.NoError(t, err)

	var resp handler.SettingsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, cachebuster.Settings{
		Strategy:          cachebuster.StrategyOnPeriod,
		PeriodMinutes:     30,
		ShowManualTrigger: true,
	}, resp.Settings)
}

func TestSettingsSetRejectsUnknownStrategy(t *testing.T) {
	srv := newServer(t)

	_, err := run(t, srv, "settings", "set", "--strategy", "sometimes")
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestClearAndRewrite(t *testing.T) {
	srv := newServer(t)

	_, err := run(t, srv, "settings", "set", "--strategy", "never")
	require.NoError(t, err)

	out, err := run(t, srv, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "1700000000")

	out, err = run(t, srv, "rewrite", "/a.css", "/b.js?time=1#x")
	require.NoError(t, err)
	assert.Equal(t, "/a.css?time=1700000000\n/b.js?time=1700000000#x\n", out)
}

func TestRewriteRequiresArgs(t *testing.T) {
	srv := newServer(t)

	_, err := run(t, srv, "rewrite")
	assert.Error(t, err)
}
