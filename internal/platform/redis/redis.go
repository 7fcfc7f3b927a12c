package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

// Options for one Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// PingTimeout bounds the connectivity check in Open.
	PingTimeout time.Duration
}

// Client is the go-redis client holding the document key.
type Client struct {
	*redis.Client
	addr string
}

// Open connects and verifies the server answers PING.
func Open(ctx context.Context, opts Options) (*Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis: empty addr")
	}
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	rc := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	c := &Client{Client: rc, addr: opts.Addr}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.Client.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis %s: %w", opts.Addr, err)
	}
	return c, nil
}

func (c *Client) Addr() string {
	return c.addr
}
