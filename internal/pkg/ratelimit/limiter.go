// Package ratelimit provides Redis-backed fixed-window rate limiting for
// per-user actions such as sending messages. Counters are shared by every
// request path (REST and websocket) so a user cannot bypass the limit by
// switching transports.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"duochat/internal/pkg/logx"
)

// Rule defines a rate limiting policy: the Redis key prefix, maximum number of
// requests allowed in the window, and the window duration.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

// MessageRule returns the send-message policy for the given budget.
func MessageRule(limit int, window time.Duration) Rule {
	return Rule{Key: "rl:msg:", Limit: limit, Window: window}
}

// Limiter performs rate limiting checks against Redis.
type Limiter struct {
	client redis.Cmdable
	rule   Rule
}

// NewLimiter creates a Limiter enforcing rule on the given Redis client.
func NewLimiter(client redis.Cmdable, rule Rule) *Limiter {
	return &Limiter{client: client, rule: rule}
}

// Connect dials Redis at addr and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: redis connection failed: %w", err)
	}
	return client, nil
}

// Allow increments the identifier's counter and reports whether it is still
// within the limit. The window starts at the first increment.
//
// On Redis errors the method fails open (returns true) so that an outage does
// not block legitimate traffic.
func (l *Limiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := l.rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		logx.Warn("redis INCR failed, failing open", "key", key, "error", err.Error())
		return true, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.rule.Window).Err(); err != nil {
			logx.Warn("redis EXPIRE failed, failing open", "key", key, "error", err.Error())
			// A key without TTL would block the identifier forever.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= l.rule.Limit, nil
}

// remaining returns how many requests the identifier has left in the current window.
func (l *Limiter) remaining(ctx context.Context, identifier string) (int, error) {
	key := l.rule.Key + identifier

	count, err := l.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return l.rule.Limit, nil
	}
	if err != nil {
		return l.rule.Limit, err
	}

	return max(l.rule.Limit-count, 0), nil
}
