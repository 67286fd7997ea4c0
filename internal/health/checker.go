package health

import (
	"context"
	"time"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"  // 旁路依赖异常，抓包与解析仍可用
	StatusUnhealthy Status = "unhealthy" // 旁路监听或抓包存储不可用
)

func (s Status) rank() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Worse 返回两者中较差的状态
func Worse(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// CheckResult 单项检查结果
type CheckResult struct {
	Status  Status                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Latency time.Duration          `json:"latency"`
}

// Checker 健康检查器
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// result 以 start 计算耗时
func result(start time.Time, status Status, msg string, details map[string]interface{}) CheckResult {
	return CheckResult{Status: status, Message: msg, Details: details, Latency: time.Since(start)}
}
