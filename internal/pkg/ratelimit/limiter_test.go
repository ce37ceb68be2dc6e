package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisAddr returns TEST_REDIS_ADDR or skips the test.
func redisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	return addr
}

func TestLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	client, err := Connect(ctx, redisAddr(t))
	require.NoError(t, err)
	defer client.Close()

	rule := Rule{Key: "rl:test:" + uuid.NewString() + ":", Limit: 3, Window: time.Second}
	l := NewLimiter(client, rule)

	remaining, err := l.remaining(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	for i := range 3 {
		ok, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}

	ok, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err = l.remaining(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	ok, err = l.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok, "identifiers are counted separately")

	ttl, err := client.TTL(ctx, rule.Key+"alice").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	require.Eventually(t, func() bool {
		ok, err := l.Allow(ctx, "alice")
		return err == nil && ok
	}, 3*time.Second, 100*time.Millisecond, "window should reset")
}

func TestConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Connect(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}

func TestMessageRule(t *testing.T) {
	r := MessageRule(5, time.Minute)
	assert.Equal(t, Rule{Key: "rl:msg:", Limit: 5, Window: time.Minute}, r)
}
