package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/zvt-tap/internal/capture"
)

// DatabaseChecker 抓包存储健康检查：连接池与写入熔断器
type DatabaseChecker struct {
	pool     *pgxpool.Pool
	recorder *capture.Recorder
}

// NewDatabaseChecker recorder 可为 nil
func NewDatabaseChecker(pool *pgxpool.Pool, recorder *capture.Recorder) *DatabaseChecker {
	return &DatabaseChecker{pool: pool, recorder: recorder}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.pool.Ping(ctx); err != nil {
		return result(start, StatusUnhealthy, fmt.Sprintf("capture store unreachable: %v", err), nil)
	}

	stats := c.pool.Stat()
	utilization := 0.0
	if stats.MaxConns() > 0 {
		utilization = float64(stats.AcquiredConns()) / float64(stats.MaxConns())
	}
	details := map[string]interface{}{
		"total_conns":    stats.TotalConns(),
		"idle_conns":     stats.IdleConns(),
		"acquired_conns": stats.AcquiredConns(),
		"max_conns":      stats.MaxConns(),
		"utilization":    fmt.Sprintf("%.1f%%", utilization*100),
	}

	status, message := StatusHealthy, "ok"
	if utilization >= 1.0 {
		status, message = StatusDegraded, "connection pool exhausted"
	}
	if c.recorder != nil {
		bs := c.recorder.Breaker().Stats()
		details["capture_breaker"] = bs.State
		details["capture_queue"] = c.recorder.QueueLen()
		if bs.State != capture.StateClosed.String() {
			status, message = StatusDegraded, "capture writes suspended"
		}
	}
	return result(start, status, message, details)
}
