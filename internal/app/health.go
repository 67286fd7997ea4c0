package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/taoyao-code/zvt-tap/internal/capture"
	"github.com/taoyao-code/zvt-tap/internal/health"
	redisstorage "github.com/taoyao-code/zvt-tap/internal/storage/redis"
	"github.com/taoyao-code/zvt-tap/internal/tcpserver"
)

// NewHealthAggregator 创建健康检查聚合器；未配置数据库时不检查存储
func NewHealthAggregator(dbpool *pgxpool.Pool, recorder *capture.Recorder) *health.Aggregator {
	agg := health.NewAggregator()
	if dbpool != nil {
		agg.AddChecker(health.NewDatabaseChecker(dbpool, recorder))
	}
	return agg
}

// AddTCPChecker 添加TCP检查器；srv 为 nil 表示未开启监听
func AddTCPChecker(agg *health.Aggregator, srv *tcpserver.Server) {
	agg.AddChecker(health.NewTCPChecker(srv))
}

// AddRedisChecker Redis 不可用只降级
func AddRedisChecker(agg *health.Aggregator, client *redisstorage.Client) {
	if client != nil {
		agg.AddOptional(health.NewRedisChecker(client))
	}
}

// AddNATSChecker NATS 不可用只降级
func AddNATSChecker(agg *health.Aggregator, nc *nats.Conn) {
	if nc != nil {
		agg.AddOptional(health.NewNATSChecker(nc))
	}
}

// ReadyFunc 供 /readyz 使用
func ReadyFunc(agg *health.Aggregator, timeout time.Duration) func() bool {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return agg.Ready(ctx)
	}
}
