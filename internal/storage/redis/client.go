package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
)

// ErrDisabled redis.enabled 为 false
var ErrDisabled = errors.New("redis: disabled")

const pingTimeout = 5 * time.Second

// Client 会话表与最近单元列表共用的 Redis 连接
type Client struct {
	*redis.Client
	addr string
}

// Options 配置转换为 go-redis 选项，未填的池参数交给 go-redis 默认值
func Options(cfg cfgpkg.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	return opts
}

// NewClient 建立连接并探活，探活失败时关闭连接
func NewClient(ctx context.Context, cfg cfgpkg.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	rdb := redis.NewClient(Options(cfg))

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Client{Client: rdb, addr: cfg.Addr}, nil
}

// Addr 连接地址
func (c *Client) Addr() string { return c.addr }

// Close nil 安全
func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
