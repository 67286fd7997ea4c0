package health

import (
	"context"
	"testing"
	"time"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
	delay  time.Duration
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return CheckResult{Status: StatusUnhealthy, Message: ctx.Err().Error()}
		}
	}
	return CheckResult{Status: m.status, Message: "mock", Latency: time.Millisecond}
}

func TestAggregator(t *testing.T) {
	t.Run("全部健康", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{name: "db", status: StatusHealthy},
			&mockChecker{name: "tcp", status: StatusHealthy},
		)
		if s := agg.Report(context.Background()).Status; s != StatusHealthy {
			t.Errorf("期望StatusHealthy，实际: %v", s)
		}
		if !agg.Ready(context.Background()) {
			t.Error("全部健康时应该Ready")
		}
	})

	t.Run("部分降级", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{name: "db", status: StatusHealthy},
			&mockChecker{name: "tcp", status: StatusDegraded},
		)
		if s := agg.Report(context.Background()).Status; s != StatusDegraded {
			t.Errorf("期望StatusDegraded，实际: %v", s)
		}
		if !agg.Ready(context.Background()) {
			t.Error("降级状态应该仍然Ready")
		}
	})

	t.Run("关键检查不健康", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{name: "tcp", status: StatusUnhealthy})
		if agg.Ready(context.Background()) {
			t.Error("不健康状态不应该Ready")
		}
	})

	t.Run("可选检查不健康只降级", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{name: "tcp", status: StatusHealthy})
		agg.AddOptional(&mockChecker{name: "nats", status: StatusUnhealthy})

		report := agg.Report(context.Background())
		if report.Status != StatusDegraded {
			t.Errorf("期望StatusDegraded，实际: %v", report.Status)
		}
		if report.Checks["nats"].Details["optional"] != true {
			t.Error("可选检查应标记optional")
		}
		if !agg.Ready(context.Background()) {
			t.Error("可选依赖故障时应该仍然Ready")
		}
	})

	t.Run("单项超时", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{name: "slow", status: StatusHealthy, delay: time.Second})
		agg.SetTimeout(20 * time.Millisecond)

		start := time.Now()
		results := agg.CheckAll(context.Background())
		if time.Since(start) > 500*time.Millisecond {
			t.Error("超时未生效")
		}
		if results["slow"].Status != StatusUnhealthy {
			t.Errorf("超时应为不健康，实际: %v", results["slow"].Status)
		}
	})

	t.Run("CheckAll并发执行", func(t *testing.T) {
		agg := NewAggregator()
		for _, n := range []string{"a", "b", "c"} {
			agg.AddChecker(&mockChecker{name: n, status: StatusHealthy, delay: 50 * time.Millisecond})
		}
		start := time.Now()
		results := agg.CheckAll(context.Background())
		if len(results) != 3 {
			t.Fatalf("期望3个结果，实际: %d", len(results))
		}
		if time.Since(start) > 140*time.Millisecond {
			t.Error("检查应并发执行")
		}
	})
}
