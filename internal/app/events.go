package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/events"
	"github.com/taoyao-code/zvt-tap/internal/metrics"
)

// NewEventSinks 组装事件发布：WebSocket Hub 始终启用，NATS 按配置连接
// NATS 连接失败只记录告警，不影响启动
func NewEventSinks(cfg cfgpkg.NATSConfig, hub *events.Hub, appm *metrics.AppMetrics, logger *zap.Logger) (*events.Multi, *events.NATSPublisher) {
	var np *events.NATSPublisher
	if cfg.URL != "" {
		p, err := events.ConnectNATS(cfg, logger.Named("nats"))
		if err != nil {
			logger.Warn("nats unavailable, unit events only pushed to websocket", zap.Error(err))
		} else {
			np = p
			logger.Info("nats connected", zap.String("subject_prefix", cfg.SubjectPrefix))
		}
	}

	var multi *events.Multi
	if np != nil {
		multi = events.NewMulti(hub, np)
	} else {
		multi = events.NewMulti(hub)
	}
	multi.SetResultCallback(func(sink, result string) {
		appm.EventsTotal.WithLabelValues(sink, result).Inc()
	})
	return multi, np
}
