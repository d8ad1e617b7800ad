package usage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounter(t *testing.T) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisCounter(rdb), mr
}

func TestRedisCounter_IncrementAndSummary(t *testing.T) {
	c, mr := newCounter(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)

	require.NoError(t, c.Increment(ctx, &Record{Provider: "openai", Success: true, PromptTokens: 10, CompletionTokens: 5, CreatedAt: day}))
	require.NoError(t, c.Increment(ctx, &Record{Provider: "openai", Success: false, CreatedAt: day}))
	require.NoError(t, c.Increment(ctx, &Record{Provider: "gemini", Success: true, PromptTokens: 3, CreatedAt: day}))

	got, err := c.Summary(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, map[string]ProviderStats{
		"openai": {Requests: 2, Errors: 1, Tokens: 15},
		"gemini": {Requests: 1, Tokens: 3},
	}, got)

	ttl := mr.TTL("usage:2026-03-01")
	assert.Equal(t, counterTTL, ttl)
}

func TestRedisCounter_DaysAreSeparate(t *testing.T) {
	c, _ := newCounter(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.Increment(ctx, &Record{Provider: "groq", Success: true, CreatedAt: day}))

	next, err := c.Summary(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestRedisCounter_IgnoresForeignFields(t *testing.T) {
	c, mr := newCounter(t)
	mr.HSet("usage:2026-03-01", "deepseek:requests", "4", "junk", "1", "deepseek:other", "9", "deepseek:tokens", "NaN")

	got, err := c.Summary(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, map[string]ProviderStats{"deepseek": {Requests: 4}}, got)
}

func TestRedisCounter_Unavailable(t *testing.T) {
	c, mr := newCounter(t)
	mr.Close()

	err := c.Increment(context.Background(), &Record{Provider: "openai"})
	assert.ErrorContains(t, err, "failed to increment usage counters")
}
