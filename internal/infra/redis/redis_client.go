package redis

import (
	"context"

	"github.com/go-redis/redis/v8"

	"startup-analysis-pipeline/internal/config"
)

// Client wraps the go-redis client used by the broadcaster and the job lock.
type Client struct {
	cli *redis.Client
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{cli: c}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }
func (c *Client) Close() error                   { return c.cli.Close() }
