package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// Options configures a client. Zero timeouts fall back to package defaults; a zero PoolSize
// keeps go-redis' own default.
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (o Options) validate() error {
	if strings.TrimSpace(o.Addr) == "" {
		return errors.New("redis: addr is empty")
	}
	if o.DB < 0 {
		return errors.New("redis: db index must be non-negative")
	}
	if o.PoolSize < 0 {
		return errors.New("redis: pool size must be non-negative")
	}
	return nil
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// NewRedisClient returns a configured go-redis client and validates the connection with PING,
// bounded by ctx and the dial timeout.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	dial := orDefault(opts.DialTimeout, defaultDialTimeout)

	client := redis.NewClient(&redis.Options{
		Addr:         strings.TrimSpace(opts.Addr),
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  dial,
		ReadTimeout:  orDefault(opts.ReadTimeout, defaultReadTimeout),
		WriteTimeout: orDefault(opts.WriteTimeout, defaultWriteTimeout),
	})

	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	return client, nil
}
