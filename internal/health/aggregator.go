package health

import (
	"context"
	"sync"
	"time"
)

// DefaultCheckTimeout 单个检查的超时
const DefaultCheckTimeout = 2 * time.Second

type entry struct {
	checker  Checker
	critical bool
}

// Aggregator 健康检查聚合器
// 关键检查不健康时整体不健康；可选检查不健康只使整体降级
type Aggregator struct {
	mu      sync.RWMutex
	entries []entry
	timeout time.Duration
	now     func() time.Time
}

// NewAggregator 传入的检查器均视为关键检查
func NewAggregator(checkers ...Checker) *Aggregator {
	a := &Aggregator{timeout: DefaultCheckTimeout, now: time.Now}
	for _, c := range checkers {
		a.entries = append(a.entries, entry{checker: c, critical: true})
	}
	return a
}

// SetTimeout 设置单个检查的超时
func (a *Aggregator) SetTimeout(d time.Duration) {
	if d > 0 {
		a.timeout = d
	}
}

// AddChecker 添加关键检查器
func (a *Aggregator) AddChecker(c Checker) { a.add(c, true) }

// AddOptional 添加可选检查器（Redis、NATS 等旁路依赖）
func (a *Aggregator) AddOptional(c Checker) { a.add(c, false) }

func (a *Aggregator) add(c Checker, critical bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry{checker: c, critical: critical})
}

// CheckAll 并发执行全部检查
func (a *Aggregator) CheckAll(ctx context.Context) map[string]CheckResult {
	a.mu.RLock()
	entries := append([]entry(nil), a.entries...)
	a.mu.RUnlock()

	results := make(map[string]CheckResult, len(entries))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, e := range entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			r := e.checker.Check(cctx)
			if !e.critical && r.Status == StatusUnhealthy {
				r.Status = StatusDegraded
				if r.Details == nil {
					r.Details = map[string]interface{}{}
				}
				r.Details["optional"] = true
			}
			mu.Lock()
			results[e.checker.Name()] = r
			mu.Unlock()
		}(e)
	}
	wg.Wait()
	return results
}

// Overall 由检查结果计算整体状态
func Overall(results map[string]CheckResult) Status {
	status := StatusHealthy
	for _, r := range results {
		status = Worse(status, r.Status)
	}
	return status
}

// HealthReport 健康报告
type HealthReport struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Report 执行一轮检查并生成报告
func (a *Aggregator) Report(ctx context.Context) HealthReport {
	checks := a.CheckAll(ctx)
	return HealthReport{Status: Overall(checks), Timestamp: a.now(), Checks: checks}
}

// Ready 降级仍视为就绪
func (a *Aggregator) Ready(ctx context.Context) bool {
	return Overall(a.CheckAll(ctx)) != StatusUnhealthy
}
