package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	TCPAccepted      prometheus.Counter
	TCPRejected      *prometheus.CounterVec // labels: reason=limit|rate|breaker
	TCPBytesReceived prometheus.Counter
	UnitsTotal       *prometheus.CounterVec // labels: control, direction, transport
	HandshakeTotal   *prometheus.CounterVec // labels: kind=ack|nak
	NeedMoreTotal    prometheus.Counter     // 等待后续分段的次数
	DeclinedTotal    *prometheus.CounterVec // labels: reason
	OnlineGauge      prometheus.Gauge       // 当前活动连接
	CaptureTotal     *prometheus.CounterVec // labels: result=ok|error|dropped
	EventsTotal      *prometheus.CounterVec // labels: sink, result
	DissectTotal     *prometheus.CounterVec // labels: result, HTTP 即时解析
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_accept_total",
			Help: "Total accepted TCP connections.",
		}),
		TCPRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcp_reject_total",
			Help: "Rejected TCP connections by reason.",
		}, []string{"reason"}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_bytes_received_total",
			Help: "Total bytes received over TCP.",
		}),
		UnitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zvt_units_total",
			Help: "Dissected ZVT units by control code, direction and transport.",
		}, []string{"control", "direction", "transport"}),
		HandshakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zvt_handshake_total",
			Help: "Serial ACK/NAK handshakes.",
		}, []string{"kind"}),
		NeedMoreTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zvt_need_more_total",
			Help: "Segments that ended mid-unit and were buffered for reassembly.",
		}),
		DeclinedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zvt_declined_total",
			Help: "Byte streams declined as not ZVT.",
		}, []string{"reason"}),
		OnlineGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "session_online_count",
			Help: "Current number of tapped connections.",
		}),
		CaptureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_write_total",
			Help: "Capture records written to storage.",
		}, []string{"result"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_publish_total",
			Help: "Unit events published by sink.",
		}, []string{"sink", "result"}),
		DissectTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_dissect_total",
			Help: "On-demand dissect requests.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.TCPAccepted, m.TCPRejected, m.TCPBytesReceived,
		m.UnitsTotal, m.HandshakeTotal, m.NeedMoreTotal, m.DeclinedTotal,
		m.OnlineGauge, m.CaptureTotal, m.EventsTotal, m.DissectTotal,
	)
	return m
}
