package tcpserver

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RateLimiter 建链速率限制（令牌桶）
type RateLimiter struct {
	limiter  *rate.Limiter
	perSec   float64
	burst    int
	allowed  atomic.Int64
	rejected atomic.Int64
}

// NewRateLimiter perSec 为稳定速率，burst 为桶容量（<=0 时取速率的 2 倍）
func NewRateLimiter(perSec float64, burst int) *RateLimiter {
	if perSec <= 0 {
		perSec = 100
	}
	if burst <= 0 {
		burst = int(perSec * 2)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		perSec:  perSec,
		burst:   burst,
	}
}

// Allow 非阻塞检查
func (l *RateLimiter) Allow() bool {
	if l.limiter.Allow() {
		l.allowed.Add(1)
		return true
	}
	l.rejected.Add(1)
	return false
}

// Stats 统计信息
func (l *RateLimiter) Stats() RateLimiterStats {
	return RateLimiterStats{
		RatePerSecond: l.perSec,
		Burst:         l.burst,
		AllowedTotal:  l.allowed.Load(),
		RejectedTotal: l.rejected.Load(),
	}
}

// RateLimiterStats 速率限制统计
type RateLimiterStats struct {
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
	AllowedTotal  int64   `json:"allowed_total"`
	RejectedTotal int64   `json:"rejected_total"`
}
