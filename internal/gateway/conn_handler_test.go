package gateway

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/zvt-tap/internal/capture"
	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/events"
	"github.com/taoyao-code/zvt-tap/internal/metrics"
	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
	"github.com/taoyao-code/zvt-tap/internal/session"
	"github.com/taoyao-code/zvt-tap/internal/tcpserver"
)

type fakeRecorder struct {
	mu     sync.Mutex
	frames []*zvt.Frame
	srcs   []capture.Source
}

func (f *fakeRecorder) Record(src capture.Source, fr *zvt.Frame, _ time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	f.srcs = append(f.srcs, src)
	return true
}

func (f *fakeRecorder) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

type fakeRecent struct {
	mu   sync.Mutex
	docs map[string]int
}

func (f *fakeRecent) Push(_ context.Context, connID string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[connID]++
	return nil
}

type harness struct {
	srv  *tcpserver.Server
	sess *session.MemoryManager
	rec  *fakeRecorder
	hub  *events.Hub
	rc   *fakeRecent
	m    *metrics.AppMetrics
}

func startHarness(t *testing.T, mode zvt.Transport) *harness {
	t.Helper()
	h := &harness{
		sess: session.NewMemory(time.Minute),
		rec:  &fakeRecorder{},
		hub:  events.NewHub(),
		rc:   &fakeRecent{docs: map[string]int{}},
		m:    metrics.NewAppMetrics(prometheus.NewRegistry()),
	}
	h.srv = tcpserver.New(cfgpkg.TCPConfig{ReadTimeout: 2 * time.Second}, "127.0.0.1:0", nil)
	h.srv.SetConnHandler(NewConnHandler(Deps{
		Mode:     mode,
		ServerID: "test-1",
		Sessions: h.sess,
		Recorder: h.rec,
		Events:   events.NewMulti(h.hub),
		Recent:   h.rc,
		Metrics:  h.m,
	}))
	require.NoError(t, h.srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.srv.Shutdown(ctx)
		_ = h.hub.Close()
	})
	return h
}

func (h *harness) onlySession(t *testing.T) session.Info {
	t.Helper()
	list, err := h.sess.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

// waitActivity 等待会话计数达到预期；Touch 在一批帧全部分发之后执行
func (h *harness) waitActivity(t *testing.T, units, handshakes int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		list, err := h.sess.List(context.Background())
		return err == nil && len(list) == 1 && list[0].Units == units && list[0].Handshakes == handshakes
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnHandler_TCPStream(t *testing.T) {
	h := startHarness(t, zvt.TransportNone)
	sub := h.hub.Subscribe("", 16)

	c, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	auth := zvt.BuildUnit(zvt.CtrlAuthorisation, []byte{0x04, 0, 0, 0, 0, 0x01, 0x00})
	// 第一段以半个授权单元结尾
	first := append(zvt.BuildStatus(zvt.StatusMarkerACK, 0x00), auth[:4]...)
	_, err = c.Write(first)
	require.NoError(t, err)
	h.waitActivity(t, 1, 0)

	_, err = c.Write(auth[4:])
	require.NoError(t, err)
	h.waitActivity(t, 2, 0)

	h.rec.mu.Lock()
	assert.True(t, h.rec.frames[0].Unit.IsStatus())
	assert.Equal(t, zvt.CtrlAuthorisation, h.rec.frames[1].Unit.Control)
	assert.NotEmpty(t, h.rec.srcs[1].ConnID)
	assert.NotEmpty(t, h.rec.srcs[1].RemoteAddr)
	connID := h.rec.srcs[1].ConnID
	h.rec.mu.Unlock()

	info := h.onlySession(t)
	assert.Equal(t, connID, info.ConnID)
	assert.Equal(t, "test-1", info.ServerID)
	assert.Equal(t, "tcp", info.Transport)
	assert.EqualValues(t, 2, info.Units)
	assert.EqualValues(t, len(first)+len(auth)-4, info.Bytes)
	assert.Equal(t, "0x0601", info.LastControl)
	assert.Equal(t, "ecr_to_pt", info.LastDirection)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.NeedMoreTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.UnitsTotal.WithLabelValues("0x0601", "ecr_to_pt", "tcp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.OnlineGauge))

	h.rc.mu.Lock()
	assert.Equal(t, 2, h.rc.docs[connID])
	h.rc.mu.Unlock()
	assert.Len(t, sub.C, 2)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.m.OnlineGauge) == 0
	}, 2*time.Second, 10*time.Millisecond)
	closed, err := h.sess.Get(context.Background(), connID)
	require.NoError(t, err)
	assert.True(t, closed.Closed())
}

func TestConnHandler_SerialHandshakes(t *testing.T) {
	h := startHarness(t, zvt.TransportNone)

	c, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	payload := append([]byte{zvt.ACK}, zvt.BuildSerial(zvt.BuildUnit(zvt.CtrlDiag, nil), 0x1234)...)
	payload = append(payload, zvt.NAK)
	_, err = c.Write(payload)
	require.NoError(t, err)
	h.waitActivity(t, 1, 2)
	assert.Equal(t, 3, h.rec.len())

	info := h.onlySession(t)
	assert.Equal(t, "serial", info.Transport)
	assert.EqualValues(t, 1, info.Units)
	assert.EqualValues(t, 2, info.Handshakes)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.HandshakeTotal.WithLabelValues("ack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.HandshakeTotal.WithLabelValues("nak")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.UnitsTotal.WithLabelValues("0x0670", "ecr_to_pt", "serial")))
}

func TestConnHandler_UnknownClosed(t *testing.T) {
	h := startHarness(t, zvt.TransportNone)

	c, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	// 无法识别的连接由服务端关闭
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1)
	_, err = c.Read(buf)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		list, _ := h.sess.List(context.Background())
		return len(list) == 1 && list[0].Closed()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, h.rec.len())
}

func TestConnHandler_FixedStreamDeclines(t *testing.T) {
	h := startHarness(t, zvt.TransportStream)

	c, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	// 固定 TCP 流模式下不做首包初判，数据交由解码器拒绝
	_, err = c.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.m.DeclinedTotal.WithLabelValues(DeclineNotZVT)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = c.Write(zvt.BuildUnit(zvt.CtrlCompletion, nil))
	require.NoError(t, err)
	h.waitActivity(t, 1, 0)
	assert.Equal(t, 1, h.rec.len())

	info := h.onlySession(t)
	assert.EqualValues(t, 1, info.Declines)
	assert.EqualValues(t, 1, info.Units)
}

func TestConnHandler_DirectionAndUnknownControl(t *testing.T) {
	h := startHarness(t, zvt.TransportNone)

	c, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	// 已知单元后接未登记控制字段
	first := append(zvt.BuildUnit(zvt.CtrlCompletion, nil), zvt.BuildUnit(0x0605, []byte{0xAA, 0xBB})...)
	_, err = c.Write(first)
	require.NoError(t, err)
	h.waitActivity(t, 2, 0)

	info := h.onlySession(t)
	assert.Equal(t, "0x0605", info.LastControl)
	assert.Equal(t, "unknown", info.LastDirection)

	_, err = c.Write(zvt.BuildUnit(zvt.CtrlPrintLine, []byte{0x41}))
	require.NoError(t, err)
	h.waitActivity(t, 3, 0)
	assert.Equal(t, "pt_to_ecr", h.onlySession(t).LastDirection)

	// 未登记的控制字段不单独产生标签
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.UnitsTotal.WithLabelValues("unknown", "unknown", "tcp")))
	assert.Equal(t, 3, testutil.CollectAndCount(h.m.UnitsTotal))
}
