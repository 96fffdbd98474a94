package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
)

// Client 记录流所用的 Redis 连接，同时满足健康检查的 Ping/PoolStats
type Client struct {
	rdb *redis.Client
	cfg cfgpkg.RedisConfig
}

// Options 配置到 go-redis 选项的映射
func Options(cfg cfgpkg.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// NewClient 建连并 Ping 一次，失败时关闭连接池
func NewClient(ctx context.Context, cfg cfgpkg.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(Options(cfg))
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, cfg: cfg}, nil
}

// RecordStream 按配置的流名、长度上限与计数 TTL 创建记录输出
func (c *Client) RecordStream() *RecordStream {
	return NewRecordStream(c.rdb, c.cfg.Stream, c.cfg.StreamMaxLen, c.cfg.StatsTTL)
}

func (c *Client) Ping(ctx context.Context) *redis.StatusCmd { return c.rdb.Ping(ctx) }
func (c *Client) PoolStats() *redis.PoolStats               { return c.rdb.PoolStats() }

func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
