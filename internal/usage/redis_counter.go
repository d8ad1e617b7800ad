package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterTTL = 35 * 24 * time.Hour

// RedisCounter keeps one hash per UTC day, "usage:2006-01-02", with fields
// "<provider>:requests", "<provider>:errors" and "<provider>:tokens".
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func dayKey(t time.Time) string {
	return "usage:" + t.UTC().Format(time.DateOnly)
}

func (c *RedisCounter) Increment(ctx context.Context, rec *Record) error {
	at := rec.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	key := dayKey(at)

	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, rec.Provider+":requests", 1)
	if !rec.Success {
		pipe.HIncrBy(ctx, key, rec.Provider+":errors", 1)
	}
	if tokens := rec.TotalTokens(); tokens > 0 {
		pipe.HIncrBy(ctx, key, rec.Provider+":tokens", int64(tokens))
	}
	pipe.Expire(ctx, key, counterTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment usage counters: %w", err)
	}
	return nil
}

func (c *RedisCounter) Summary(ctx context.Context, day time.Time) (map[string]ProviderStats, error) {
	fields, err := c.rdb.HGetAll(ctx, dayKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read usage counters: %w", err)
	}

	out := make(map[string]ProviderStats)
	for field, raw := range fields {
		i := strings.LastIndex(field, ":")
		if i < 0 {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		name, metric := field[:i], field[i+1:]
		s := out[name]
		switch metric {
		case "requests":
			s.Requests = n
		case "errors":
			s.Errors = n
		case "tokens":
			s.Tokens = n
		default:
			continue
		}
		out[name] = s
	}
	return out, nil
}
