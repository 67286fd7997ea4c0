package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
)

// SubjectHandshake 串口握手事件的主题后缀
const SubjectHandshake = "handshake"

// NATSPublisher 发布到 <prefix>.<direction>，握手发布到 <prefix>.handshake
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// ConnectNATS 连接 NATS；断线自动重连
func ConnectNATS(cfg cfgpkg.NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	wait := cfg.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(wait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

// NewNATSPublisher 使用已有连接
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = "zvt.units"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject 事件对应的主题
func (p *NATSPublisher) Subject(ev *UnitEvent) string {
	if ev.Unit == nil {
		return p.prefix + "." + SubjectHandshake
	}
	return p.prefix + "." + ev.Direction()
}

func (p *NATSPublisher) Name() string { return "nats" }

// Conn 底层连接（健康检查使用）
func (p *NATSPublisher) Conn() *nats.Conn { return p.nc }

// Publish 序列化为 JSON 后发布；不等待服务端确认
func (p *NATSPublisher) Publish(_ context.Context, ev *UnitEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.Subject(ev), data)
}

// Close 刷出缓冲后断开
func (p *NATSPublisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}
