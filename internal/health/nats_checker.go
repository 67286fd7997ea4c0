package health

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSChecker 事件发布连接检查
type NATSChecker struct {
	nc *nats.Conn
}

func NewNATSChecker(nc *nats.Conn) *NATSChecker { return &NATSChecker{nc: nc} }

func (c *NATSChecker) Name() string { return "nats" }

func (c *NATSChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	st := c.nc.Status()
	details := map[string]interface{}{
		"status":     st.String(),
		"url":        c.nc.ConnectedUrl(),
		"reconnects": c.nc.Stats().Reconnects,
	}
	switch st {
	case nats.CONNECTED:
		return result(start, StatusHealthy, "ok", details)
	case nats.RECONNECTING, nats.CONNECTING:
		return result(start, StatusDegraded, "reconnecting", details)
	default:
		return result(start, StatusUnhealthy, "disconnected", details)
	}
}
