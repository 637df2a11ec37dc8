package nonce

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseManager(t *testing.T, m Manager) {
	t.Helper()
	ctx := context.Background()

	token, err := m.Issue(ctx, ActionClearCacheTime)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ok, err := m.Verify(ctx, ActionUpdateCSSJS, token)
	require.NoError(t, err)
	assert.False(t, ok, "token is bound to its action")

	ok, err = m.Verify(ctx, ActionClearCacheTime, token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Verify(ctx, ActionClearCacheTime, token)
	require.NoError(t, err)
	assert.False(t, ok, "token is single use")

	ok, err = m.Verify(ctx, ActionClearCacheTime, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Verify(ctx, ActionClearCacheTime, "forged")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryManager(t *testing.T) {
	exerciseManager(t, NewMemoryManager(time.Minute))
}

func TestMemoryManager_Expiry(t *testing.T) {
	m := NewMemoryManager(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	token, err := m.Issue(context.Background(), ActionUpdateCSSJS)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	ok, err := m.Verify(context.Background(), ActionUpdateCSSJS, token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, m.TTL())
}

func TestRedisManager(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseManager(t, NewRedisManager(client, "acb:", time.Minute))
}

func TestRedisManager_ExpiryAndHashedStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	m := NewRedisManager(client, "acb:", time.Minute)
	token, err := m.Issue(context.Background(), ActionClearCacheTime)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], token)

	mr.FastForward(2 * time.Minute)
	ok, err := m.Verify(context.Background(), ActionClearCacheTime, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewManagers_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewMemoryManager(0).TTL())
	assert.Equal(t, DefaultTTL, NewRedisManager(nil, "", 0).TTL())
}
