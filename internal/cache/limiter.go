package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts login attempts per identifier inside a sliding
// window. The counter key expires with the window, so no cleanup job is
// needed.
type LoginLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

func NewLoginLimiter(client *redis.Client, max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		client: client,
		max:    max,
		window: window,
	}
}

// Allow records one attempt for the identifier and reports whether the
// caller is still under the limit.
func (l *LoginLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := fmt.Sprintf("login_attempts:%s", strings.ToLower(identifier))

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", key, err)
		}
	}

	return count <= int64(l.max), nil
}

// Reset clears the attempt counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, identifier string) error {
	key := fmt.Sprintf("login_attempts:%s", strings.ToLower(identifier))
	return l.client.Del(ctx, key).Err()
}
