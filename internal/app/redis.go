package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	redisstorage "github.com/taoyao-code/zvt-tap/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端；未启用时返回 nil
func NewRedisClient(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", client.Addr()),
		zap.Int("db", cfg.DB))

	return client, nil
}

// NewRecentUnits 连接最近单元列表，过期时间取会话超时的两倍
func NewRecentUnits(client *redisstorage.Client, cfg cfgpkg.SessionConfig) *redisstorage.RecentUnits {
	if client == nil || cfg.RecentUnits <= 0 {
		return nil
	}
	return redisstorage.NewRecentUnits(client.Client, cfg.RecentUnits, 2*cfg.IdleTimeout)
}
