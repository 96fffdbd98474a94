package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	redisstorage "github.com/taoyao-code/v93xx-probe/internal/storage/redis"
)

// NewRedisClient 未启用时返回 nil, nil
func NewRedisClient(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enable {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize),
		zap.String("stream", cfg.Stream))

	return client, nil
}
