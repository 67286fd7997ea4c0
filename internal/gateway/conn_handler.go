package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/zvt-tap/internal/capture"
	"github.com/taoyao-code/zvt-tap/internal/events"
	"github.com/taoyao-code/zvt-tap/internal/metrics"
	padapter "github.com/taoyao-code/zvt-tap/internal/protocol/adapter"
	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
	"github.com/taoyao-code/zvt-tap/internal/session"
	"github.com/taoyao-code/zvt-tap/internal/tcpserver"
)

// ProtocolZVT Mux 绑定的协议名
const ProtocolZVT = "zvt"

// 拒绝原因（zvt_declined_total 标签）
const (
	DeclineNotZVT   = "not_zvt"
	DeclineOverflow = "overflow"
)

// Recorder 抓包记录（非阻塞）
type Recorder interface {
	Record(src capture.Source, fr *zvt.Frame, at time.Time) bool
}

// RecentPusher 连接最近单元
type RecentPusher interface {
	Push(ctx context.Context, connID string, doc []byte) error
}

// Deps 连接处理依赖；除 Sessions 外均可为 nil
type Deps struct {
	Registry  *zvt.Registry
	Options   zvt.Options
	Mode      zvt.Transport // TransportNone 表示按首包自动识别
	MaxBuffer int
	ServerID  string

	Sessions session.Manager
	Recorder Recorder
	Events   events.Publisher
	Recent   RecentPusher
	Metrics  *metrics.AppMetrics
	Logger   *zap.Logger
}

// NewConnHandler 构建 TCP 连接处理器：登记会话、绑定 ZVT 适配器、分发解析结果
func NewConnHandler(d Deps) func(*tcpserver.ConnContext) {
	if d.Registry == nil {
		d.Registry = zvt.DefaultRegistry()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	parser := zvt.NewParser(d.Registry, d.Options)

	return func(cc *tcpserver.ConnContext) {
		remote := ""
		if a := cc.RemoteAddr(); a != nil {
			remote = a.String()
		}
		ctx := context.Background()
		if err := d.Sessions.Open(ctx, session.Info{
			ConnID:     cc.ID(),
			RemoteAddr: remote,
			ServerID:   d.ServerID,
			OpenedAt:   cc.OpenedAt(),
		}); err != nil {
			d.Logger.Warn("session open failed", zap.String("conn_id", cc.ID()), zap.Error(err))
		}
		d.updateOnline(ctx)

		mux := tcpserver.NewMux(d.Logger, tcpserver.Binding{
			Protocol: ProtocolZVT,
			New: func(cc *tcpserver.ConnContext) padapter.Adapter {
				return newConnAdapter(d, parser, cc.ID(), remote)
			},
		})
		mux.BindToConn(cc)

		cc.OnClose(func() {
			if err := d.Sessions.Close(ctx, cc.ID(), time.Now()); err != nil && !errors.Is(err, session.ErrNotFound) {
				d.Logger.Warn("session close failed", zap.String("conn_id", cc.ID()), zap.Error(err))
			}
			d.updateOnline(ctx)
		})
	}
}

func (d Deps) updateOnline(ctx context.Context) {
	if d.Metrics == nil {
		return
	}
	n, err := d.Sessions.OnlineCount(ctx, time.Now())
	if err != nil {
		return
	}
	d.Metrics.OnlineGauge.Set(float64(n))
}

// connAdapter 包装 zvt.Adapter，按读取批次汇总会话活动
type connAdapter struct {
	d      Deps
	a      *zvt.Adapter
	src    capture.Source
	act    session.Activity
	logger *zap.Logger
}

func newConnAdapter(d Deps, parser *zvt.Parser, connID, remote string) *connAdapter {
	ca := &connAdapter{
		d:      d,
		a:      zvt.NewAdapter(parser, d.MaxBuffer),
		src:    capture.Source{ConnID: connID, RemoteAddr: remote},
		logger: d.Logger.With(zap.String("conn_id", connID)),
	}
	ca.a.SetLogger(ca.logger)
	ca.a.Decoder().SetMode(d.Mode)
	ca.a.RegisterDefault(ca.onFrame)
	return ca
}

func (ca *connAdapter) Sniff(prefix []byte) bool {
	switch ca.d.Mode {
	case zvt.TransportStream, zvt.TransportSerial:
		// 固定传输形式时不做首包初判，由解码器拒绝
		return true
	}
	return ca.a.Sniff(prefix)
}

func (ca *connAdapter) ProcessBytes(p []byte) error {
	ca.act = session.Activity{Bytes: int64(len(p))}
	err := ca.a.ProcessBytes(p)
	if err != nil {
		ca.act.Declines++
		reason := DeclineNotZVT
		if errors.Is(err, zvt.ErrBufferOverflow) {
			reason = DeclineOverflow
		}
		if ca.d.Metrics != nil {
			ca.d.Metrics.DeclinedTotal.WithLabelValues(reason).Inc()
		}
		ca.logger.Info("zvt stream declined", zap.String("reason", reason), zap.Int("chunk_len", len(p)))
	} else if ca.a.Decoder().Pending() > 0 && ca.d.Metrics != nil {
		ca.d.Metrics.NeedMoreTotal.Inc()
	}

	ca.act.At = time.Now()
	if terr := ca.d.Sessions.Touch(context.Background(), ca.src.ConnID, ca.act); terr != nil {
		ca.logger.Debug("session touch failed", zap.Error(terr))
	}
	return err
}

func (ca *connAdapter) onFrame(fr *zvt.Frame) error {
	at := time.Now()
	ca.count(fr)

	if ca.d.Recorder != nil {
		ca.d.Recorder.Record(ca.src, fr, at)
	}
	if ca.d.Events == nil && ca.d.Recent == nil {
		return nil
	}

	ev := events.NewUnitEvent(ca.d.Registry, ca.src.ConnID, ca.src.RemoteAddr, fr, at)
	ctx := context.Background()
	if ca.d.Events != nil {
		if err := ca.d.Events.Publish(ctx, ev); err != nil {
			ca.logger.Debug("publish unit event failed", zap.Error(err))
		}
	}
	if ca.d.Recent != nil {
		doc, err := json.Marshal(ev)
		if err != nil {
			return nil
		}
		if err := ca.d.Recent.Push(ctx, ca.src.ConnID, doc); err != nil {
			ca.logger.Debug("push recent unit failed", zap.Error(err))
		}
	}
	return nil
}

func (ca *connAdapter) count(fr *zvt.Frame) {
	transport := "tcp"
	if fr.Transport.IsSerial() {
		transport = "serial"
	}
	ca.act.Transport = transport

	if fr.Unit == nil {
		ca.act.Handshakes++
		if ca.d.Metrics != nil {
			kind := "ack"
			if fr.Handshake == zvt.NAK {
				kind = "nak"
			}
			ca.d.Metrics.HandshakeTotal.WithLabelValues(kind).Inc()
		}
		return
	}

	ca.act.Units++
	control := "status"
	if !fr.Unit.IsStatus() {
		control = fr.Unit.Control.String()
	}
	direction := fr.Unit.Direction.String()
	ca.act.LastControl = control
	ca.act.LastDirection = direction
	if ca.d.Metrics != nil {
		ca.d.Metrics.UnitsTotal.WithLabelValues(metricControl(ca.d.Registry, fr.Unit), direction, fr.Transport.String()).Inc()
	}
}

// metricControl 指标标签只用登记过的控制字段，其余归为 unknown
func metricControl(reg *zvt.Registry, u *zvt.Unit) string {
	switch {
	case u.IsStatus():
		return "status"
	case reg != nil && reg.Known(u.Control):
		return u.Control.String()
	default:
		return "unknown"
	}
}
