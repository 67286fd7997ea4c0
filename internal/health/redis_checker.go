package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPinger 会话存储检查所需的最小接口
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
	PoolStats() *redis.PoolStats
}

// RedisChecker 会话表与最近单元列表所在 Redis 的检查
type RedisChecker struct {
	client RedisPinger
	// 连接池占用超过该比例时降级
	busyRatio float64
}

func NewRedisChecker(client RedisPinger) *RedisChecker {
	return &RedisChecker{client: client, busyRatio: 0.9}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return result(start, StatusUnhealthy, fmt.Sprintf("session store unreachable: %v", err), nil)
	}

	ps := c.client.PoolStats()
	var busy float64
	if ps.TotalConns > 0 {
		busy = float64(ps.TotalConns-ps.IdleConns) / float64(ps.TotalConns)
	}
	details := map[string]interface{}{
		"total_conns": ps.TotalConns,
		"idle_conns":  ps.IdleConns,
		"timeouts":    ps.Timeouts,
		"busy":        fmt.Sprintf("%.1f%%", busy*100),
	}
	if busy > c.busyRatio {
		return result(start, StatusDegraded, "session store pool busy", details)
	}
	return result(start, StatusHealthy, "ok", details)
}
