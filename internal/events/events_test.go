package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
)

func feed(t *testing.T, raw []byte) []*zvt.Frame {
	t.Helper()
	d := zvt.NewStreamDecoder(zvt.NewParser(nil, zvt.Options{}), 0)
	frames, err := d.Feed(raw)
	require.NoError(t, err)
	return frames
}

func TestNewUnitEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("TCP 单元", func(t *testing.T) {
		frames := feed(t, zvt.BuildUnit(zvt.CtrlAuthorisation, nil))
		ev := NewUnitEvent(nil, "c1", "1.2.3.4:5", frames[0], at)
		require.NotNil(t, ev.Unit)
		assert.Equal(t, "ecr_to_pt", ev.Direction())
		assert.Equal(t, "ECR", ev.Unit.Source)
		assert.Empty(t, ev.CRC)
	})

	t.Run("串口握手与帧", func(t *testing.T) {
		raw := append([]byte{zvt.NAK}, zvt.BuildSerial(zvt.BuildUnit(zvt.CtrlStatus, []byte{0x27}), 0x0102)...)
		frames := feed(t, raw)
		require.Len(t, frames, 2)

		hs := NewUnitEvent(nil, "c1", "", frames[0], at)
		assert.Nil(t, hs.Unit)
		assert.Equal(t, "Not acknowledged (NAK)", hs.Handshake)
		assert.Equal(t, "unknown", hs.Direction())

		ev := NewUnitEvent(nil, "c1", "", frames[1], at)
		assert.Equal(t, "0x0102", ev.CRC)
		assert.Equal(t, "pt_to_ecr", ev.Direction())
	})
}

func TestHub(t *testing.T) {
	frames := feed(t, zvt.BuildUnit(zvt.CtrlAbort, []byte{0x6C}))
	evA := NewUnitEvent(nil, "a", "", frames[0], time.Now())
	evB := NewUnitEvent(nil, "b", "", frames[0], time.Now())

	t.Run("按连接过滤", func(t *testing.T) {
		h := NewHub()
		all := h.Subscribe("", 4)
		onlyB := h.Subscribe("b", 4)

		require.NoError(t, h.Publish(context.Background(), evA))
		require.NoError(t, h.Publish(context.Background(), evB))

		assert.Len(t, all.C, 2)
		require.Len(t, onlyB.C, 1)

		var msg struct {
			Type string    `json:"type"`
			Data UnitEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(<-onlyB.C, &msg))
		assert.Equal(t, "unit", msg.Type)
		assert.Equal(t, "b", msg.Data.ConnID)
		assert.Equal(t, "Abort", msg.Data.Unit.Name)
	})

	t.Run("慢订阅者丢弃", func(t *testing.T) {
		h := NewHub()
		s := h.Subscribe("", 1)
		for i := 0; i < 3; i++ {
			require.NoError(t, h.Publish(context.Background(), evA))
		}
		assert.Equal(t, int64(2), s.Dropped())
	})

	t.Run("取消订阅与关闭", func(t *testing.T) {
		h := NewHub()
		s := h.Subscribe("", 1)
		h.Unsubscribe(s)
		h.Unsubscribe(s)
		_, ok := <-s.C
		assert.False(t, ok)
		assert.Zero(t, h.Count())

		s2 := h.Subscribe("", 1)
		require.NoError(t, h.Close())
		_, ok = <-s2.C
		assert.False(t, ok)

		s3 := h.Subscribe("", 1)
		_, ok = <-s3.C
		assert.False(t, ok)
	})
}

type stubPublisher struct {
	name string
	err  error
	got  []*UnitEvent
}

func (p *stubPublisher) Name() string { return p.name }
func (p *stubPublisher) Publish(_ context.Context, ev *UnitEvent) error {
	p.got = append(p.got, ev)
	return p.err
}
func (p *stubPublisher) Close() error { return p.err }

func TestMulti(t *testing.T) {
	ok := &stubPublisher{name: "ok"}
	bad := &stubPublisher{name: "bad", err: errors.New("down")}
	m := NewMulti(ok, nil, bad)
	assert.Equal(t, 2, m.Len())

	results := map[string]string{}
	m.SetResultCallback(func(sink, result string) { results[sink] = result })

	err := m.Publish(context.Background(), &UnitEvent{ConnID: "x"})
	assert.Error(t, err)
	assert.Len(t, ok.got, 1)
	assert.Len(t, bad.got, 1)
	assert.Equal(t, map[string]string{"ok": ResultOK, "bad": ResultError}, results)
	assert.Error(t, m.Close())
}

func TestNATSPublisher_Subject(t *testing.T) {
	p := NewNATSPublisher(nil, "", nil)
	assert.Equal(t, "zvt.units.handshake", p.Subject(&UnitEvent{}))
	assert.Equal(t, "zvt.units.pt_to_ecr", p.Subject(&UnitEvent{Unit: &zvt.UnitView{Direction: "pt_to_ecr"}}))
	assert.Equal(t, "nats", p.Name())
	assert.NoError(t, p.Close())
}

func TestNATSPublisher_RoundTrip(t *testing.T) {
	pub, err := ConnectNATS(cfgpkg.NATSConfig{URL: nats.DefaultURL, SubjectPrefix: "test.zvt", Name: "zvt-test"}, nil)
	if err != nil {
		t.Skipf("NATS 不可用，跳过测试: %v", err)
	}
	defer pub.Close()

	sub, err := pub.Conn().SubscribeSync("test.zvt.>")
	require.NoError(t, err)

	frames := feed(t, zvt.BuildUnit(zvt.CtrlEndOfDay, nil))
	require.NoError(t, pub.Publish(context.Background(), NewUnitEvent(nil, "c9", "", frames[0], time.Now())))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "test.zvt.ecr_to_pt", msg.Subject)

	var ev UnitEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "End Of Day", ev.Unit.Name)
}
