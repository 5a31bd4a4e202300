package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
)

// Client wraps a go-redis client with imgprep logging.
type Client struct {
	rdb    *goredis.Client
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// New creates a Redis client. It does not connect; call Ping to check the
// server.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get("redis")
	}

	dialTimeout, _ := time.ParseDuration(cfg.DialTimeout)
	readTimeout, _ := time.ParseDuration(cfg.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.WriteTimeout)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	log.Debug("redis client created", map[string]interface{}{
		"addr": cfg.Addr,
		"db":   cfg.DB,
	})
	return &Client{rdb: rdb, log: log, cfg: cfg}, nil
}

// Ping verifies the Redis connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	pong, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		return errors.IO("ping", c.cfg.Addr, err)
	}
	if pong != "PONG" {
		return errors.IO("ping", c.cfg.Addr, fmt.Errorf("unexpected response %q", pong))
	}
	return nil
}

// Key joins the configured prefix and parts with colons.
func (c *Client) Key(parts ...string) string {
	key := c.cfg.KeyPrefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Close closes the Redis connection. Safe to call multiple times.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.rdb.Close()
}

// Unwrap returns the underlying go-redis client.
func (c *Client) Unwrap() *goredis.Client {
	return c.rdb
}
