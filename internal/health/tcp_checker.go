package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/zvt-tap/internal/tcpserver"
)

// TCPChecker ZVT 旁路监听健康检查器
type TCPChecker struct {
	server *tcpserver.Server
}

// NewTCPChecker server 为 nil 表示未配置端口
func NewTCPChecker(server *tcpserver.Server) *TCPChecker {
	return &TCPChecker{server: server}
}

func (c *TCPChecker) Name() string { return "tcp" }

func (c *TCPChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	if c.server == nil {
		return result(start, StatusHealthy, "zvt port disabled", nil)
	}
	if !c.server.Running() {
		return result(start, StatusUnhealthy, "listener not running", nil)
	}

	details := map[string]interface{}{
		"active_connections": c.server.ActiveConnections(),
	}
	if addr := c.server.Addr(); addr != nil {
		details["addr"] = addr.String()
	}
	if rs := c.server.RateLimiterStats(); rs != nil {
		details["rate_rejected_total"] = rs.RejectedTotal
	}

	ls := c.server.LimiterStats()
	if ls == nil {
		return result(start, StatusHealthy, "no limiting enabled", details)
	}

	details["max_connections"] = ls.MaxConnections
	details["rejected_total"] = ls.RejectedTotal
	details["utilization"] = fmt.Sprintf("%.1f%%", ls.Utilization*100)

	status, message := StatusHealthy, "ok"
	switch {
	case ls.Utilization > 0.95:
		status, message = StatusUnhealthy, "connection limit near exhausted"
	case ls.Utilization > 0.8:
		status, message = StatusDegraded, "high connection usage"
	}
	return result(start, status, message, details)
}
