package capture

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Purger 删除截止时间之前的抓包记录
type Purger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionCleaner 按保留时长定期清理抓包记录
type RetentionCleaner struct {
	store         Purger
	logger        *zap.Logger
	retention     time.Duration
	checkInterval time.Duration
	now           func() time.Time

	statsCleaned atomic.Int64
	statsRuns    atomic.Int64
}

// NewRetentionCleaner interval<=0 时每小时检查一次
func NewRetentionCleaner(store Purger, retention, interval time.Duration, logger *zap.Logger) *RetentionCleaner {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionCleaner{
		store:         store,
		logger:        logger,
		retention:     retention,
		checkInterval: interval,
		now:           time.Now,
	}
}

// Start 阻塞运行直到 ctx 取消；retention<=0 时直接返回
func (c *RetentionCleaner) Start(ctx context.Context) {
	if c.retention <= 0 {
		return
	}
	c.logger.Info("capture retention cleaner started",
		zap.Duration("retention", c.retention),
		zap.Duration("check_interval", c.checkInterval))

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	c.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("capture retention cleaner stopped",
				zap.Int64("total_cleaned", c.statsCleaned.Load()))
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一次清理，返回删除条数
func (c *RetentionCleaner) RunOnce(ctx context.Context) int64 {
	c.statsRuns.Add(1)
	cutoff := c.now().Add(-c.retention)
	n, err := c.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("capture retention cleanup failed",
			zap.Time("cutoff", cutoff),
			zap.Error(err))
		return 0
	}
	if n > 0 {
		total := c.statsCleaned.Add(n)
		c.logger.Info("capture units purged",
			zap.Int64("deleted", n),
			zap.Time("cutoff", cutoff),
			zap.Int64("total_cleaned", total))
	}
	return n
}

// Stats 获取统计信息
func (c *RetentionCleaner) Stats() map[string]interface{} {
	return map[string]interface{}{
		"total_cleaned": c.statsCleaned.Load(),
		"runs":          c.statsRuns.Load(),
		"retention":     c.retention.String(),
	}
}
