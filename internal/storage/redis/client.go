package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Login rate limit: 10 attempts per 10 minutes per email.
const (
	loginRateLimitWindow = 600 * time.Second
	loginRateLimitMax    = 10
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// SetSession stores token -> userID under session:{token} with the given TTL.
func (c *Client) SetSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	return c.cli.Set(ctx, "session:"+token, userID, ttl).Err()
}

// GetSession returns the user id for a token; empty string if the session
// does not exist or expired.
func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// DeleteSession drops the session (logout).
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.cli.Del(ctx, "session:"+token).Err()
}

// CheckLoginRateLimit counts login attempts under login_limit:{email};
// exceeding the window limit maps to HTTP 429 at the handler.
func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (allowed bool, err error) {
	key := "login_limit:" + email
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, loginRateLimitWindow)
	}
	return n <= int64(loginRateLimitMax), nil
}
