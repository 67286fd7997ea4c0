package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const recentKeyPrefix = "zvt:recent:"

// RecentUnits 每个连接最近 N 条单元视图（JSON），用 LPUSH + LTRIM 维护定长列表
type RecentUnits struct {
	rdb   redis.Cmdable
	limit int64
	ttl   time.Duration
}

// NewRecentUnits limit<=0 时默认 50 条，ttl 为列表空闲过期时间
func NewRecentUnits(rdb redis.Cmdable, limit int, ttl time.Duration) *RecentUnits {
	if limit <= 0 {
		limit = 50
	}
	return &RecentUnits{rdb: rdb, limit: int64(limit), ttl: ttl}
}

func recentKey(connID string) string { return recentKeyPrefix + connID }

// Push 追加一条记录，最新的在列表头部
func (r *RecentUnits) Push(ctx context.Context, connID string, doc []byte) error {
	key := recentKey(connID)
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, key, doc)
	pipe.LTrim(ctx, key, 0, r.limit-1)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent unit: %w", err)
	}
	return nil
}

// List 按新到旧返回最多 n 条；n<=0 返回全部
func (r *RecentUnits) List(ctx context.Context, connID string, n int) ([][]byte, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n) - 1
	}
	vals, err := r.rdb.LRange(ctx, recentKey(connID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// Drop 删除某连接的列表
func (r *RecentUnits) Drop(ctx context.Context, connID string) error {
	return r.rdb.Del(ctx, recentKey(connID)).Err()
}
