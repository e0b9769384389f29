package redis

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/studentize/internal/config"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
)

const pingTimeout = 3 * time.Second

var ErrCacheMiss = goredis.Nil

// Client is nil-safe: a nil *Client behaves as an always-missing cache.
type Client struct {
	inner *goredis.Client
}

func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	inner := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := inner.Ping(pingCtx).Err(); err != nil {
		_ = inner.Close()
		return nil, err
	}
	return &Client{inner: inner}, nil
}

func (c *Client) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.inner == nil {
		return "", ErrCacheMiss
	}
	return c.inner.Get(ctx, key).Result()
}

func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RedisAddr == "" {
			return nil, nil
		}
		return NewClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	})
}
