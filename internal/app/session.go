package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/session"
	redisstorage "github.com/taoyao-code/zvt-tap/internal/storage/redis"
)

// NewSessionManager 构造会话管理器
// 如果Redis客户端可用，则使用Redis会话管理器，否则使用内存会话管理器
func NewSessionManager(
	cfg cfgpkg.SessionConfig,
	redisClient *redisstorage.Client,
	serverID string,
	logger *zap.Logger,
) session.Manager {
	if redisClient != nil {
		logger.Info("using redis session manager",
			zap.String("server_id", serverID),
			zap.Duration("timeout", cfg.IdleTimeout))
		return session.NewRedisManager(redisClient.Client, serverID, cfg.IdleTimeout)
	}
	logger.Info("using memory session manager", zap.Duration("timeout", cfg.IdleTimeout))
	return session.NewMemory(cfg.IdleTimeout)
}
