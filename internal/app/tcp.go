package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/metrics"
	"github.com/taoyao-code/zvt-tap/internal/tcpserver"
)

// NewTCPServer 根据配置创建 TCP 旁路监听；zvt.tcpPort 为 0 时返回 nil
func NewTCPServer(cfg *cfgpkg.Config, appm *metrics.AppMetrics, logger *zap.Logger) *tcpserver.Server {
	addr := cfg.ZVT.Addr(cfg.TCP.Host)
	if addr == "" {
		return nil
	}
	srv := tcpserver.New(cfg.TCP, addr, logger.Named("tcp"))
	srv.SetMetricsCallbacks(
		func() { appm.TCPAccepted.Inc() },
		func(reason string) { appm.TCPRejected.WithLabelValues(reason).Inc() },
		func(n int) { appm.TCPBytesReceived.Add(float64(n)) },
	)
	return srv
}
