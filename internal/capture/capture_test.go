package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
	"github.com/taoyao-code/zvt-tap/internal/storage/models"
)

type memWriter struct {
	mu    sync.Mutex
	units []models.CapturedUnit
	err   error
	calls int
}

func (w *memWriter) InsertUnits(_ context.Context, units []models.CapturedUnit) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.units = append(w.units, units...)
	return nil
}

func (w *memWriter) snapshot() []models.CapturedUnit {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.CapturedUnit(nil), w.units...)
}

type resultCounter struct {
	mu sync.Mutex
	m  map[string]int
}

func (c *resultCounter) add(result string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]int)
	}
	c.m[result] += n
}

func (c *resultCounter) get(result string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[result]
}

func decodeFrames(t *testing.T, raw []byte) []*zvt.Frame {
	t.Helper()
	d := zvt.NewStreamDecoder(zvt.NewParser(nil, zvt.Options{}), 0)
	frames, err := d.Feed(raw)
	require.NoError(t, err)
	return frames
}

func TestFromFrame(t *testing.T) {
	src := Source{ConnID: "c1", RemoteAddr: "10.0.0.2:4000"}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 7200))

	t.Run("授权指令", func(t *testing.T) {
		payload := []byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00}
		frames := decodeFrames(t, zvt.BuildUnit(zvt.CtrlAuthorisation, payload))
		require.Len(t, frames, 1)

		m := FromFrame(nil, src, frames[0], at, true)
		require.NotNil(t, m.Control)
		assert.Equal(t, int32(0x0601), *m.Control)
		assert.Equal(t, "Authorisation", m.Name)
		assert.Equal(t, "ecr_to_pt", m.Direction)
		assert.Equal(t, "tcp", m.Transport)
		assert.Equal(t, int32(10), m.Size)
		assert.Equal(t, payload, m.Payload)
		assert.JSONEq(t, `[{"tag":"0x04","name":"Amount","offset":0,"value":"000000001000"}]`, string(m.Fields))
		require.NotNil(t, m.RawHex)
		assert.Equal(t, "06010704000000001000", *m.RawHex)
		assert.Equal(t, time.UTC, m.CapturedAt.Location())
		assert.Nil(t, m.CRC)
	})

	t.Run("短状态应答", func(t *testing.T) {
		frames := decodeFrames(t, []byte{0x80, 0x00, 0x00})
		require.Len(t, frames, 1)

		m := FromFrame(nil, src, frames[0], at, false)
		assert.Nil(t, m.Control)
		require.NotNil(t, m.StatusCCRC)
		assert.Equal(t, int16(0x80), *m.StatusCCRC)
		assert.Equal(t, "Positive Completion", m.Name)
		assert.Nil(t, m.RawHex)
	})

	t.Run("串口帧与握手", func(t *testing.T) {
		raw := append([]byte{zvt.ACK}, zvt.BuildSerial(zvt.BuildUnit(zvt.CtrlPrintLine, []byte{0x41}), 0xBEEF)...)
		frames := decodeFrames(t, raw)
		require.Len(t, frames, 2)

		hs := FromFrame(nil, src, frames[0], at, true)
		assert.Equal(t, "serial_handshake", hs.Transport)
		assert.Equal(t, "Acknowledged (ACK)", hs.Name)
		assert.Equal(t, int32(1), hs.Size)

		m := FromFrame(nil, src, frames[1], at, true)
		assert.Equal(t, "serial", m.Transport)
		assert.Equal(t, "pt_to_ecr", m.Direction)
		require.NotNil(t, m.CRC)
		assert.Equal(t, int32(0xBEEF), *m.CRC)
	})
}

func TestRecorder(t *testing.T) {
	frames := decodeFrames(t, append(
		zvt.BuildUnit(zvt.CtrlRegistration, []byte{0x00, 0x00, 0x00, 0x08}),
		zvt.BuildUnit(zvt.CtrlCompletion, nil)...,
	))
	require.Len(t, frames, 2)
	src := Source{ConnID: "c2", RemoteAddr: "10.0.0.3:1"}

	t.Run("停止时写完队列", func(t *testing.T) {
		w := &memWriter{}
		rec := NewRecorder(w, cfgpkg.CaptureConfig{QueueSize: 8, Workers: 2, BatchSize: 4}, nil, nil)
		counts := &resultCounter{}
		rec.SetResultCallback(counts.add)
		rec.Start(context.Background())

		for _, fr := range frames {
			assert.True(t, rec.Record(src, fr, time.Now()))
		}
		rec.Stop()

		assert.Len(t, w.snapshot(), 2)
		assert.Equal(t, 2, counts.get(ResultOK))
		assert.False(t, rec.Record(src, frames[0], time.Now()))
		rec.Stop()
	})

	t.Run("队列满时丢弃", func(t *testing.T) {
		w := &memWriter{}
		rec := NewRecorder(w, cfgpkg.CaptureConfig{QueueSize: 1}, nil, nil)
		counts := &resultCounter{}
		rec.SetResultCallback(counts.add)

		assert.True(t, rec.Record(src, frames[0], time.Now()))
		assert.False(t, rec.Record(src, frames[1], time.Now()))
		assert.Equal(t, 1, counts.get(ResultDropped))
		assert.Equal(t, 1, rec.QueueLen())

		rec.Start(context.Background())
		rec.Stop()
		assert.Len(t, w.snapshot(), 1)
	})

	t.Run("存储失败触发熔断", func(t *testing.T) {
		w := &memWriter{err: errors.New("db down")}
		cfg := cfgpkg.CaptureConfig{QueueSize: 8, Workers: 1, BatchSize: 1}
		cfg.Breaker.FailureThreshold = 1
		cfg.Breaker.Timeout = time.Hour
		rec := NewRecorder(w, cfg, nil, nil)
		counts := &resultCounter{}
		rec.SetResultCallback(counts.add)

		for i := 0; i < 3; i++ {
			rec.Record(src, frames[0], time.Now())
		}
		rec.Start(context.Background())
		rec.Stop()

		assert.Equal(t, 1, counts.get(ResultError))
		assert.Equal(t, 2, counts.get(ResultOpen))
		assert.Equal(t, StateOpen, rec.Breaker().State())
		assert.Equal(t, 1, w.calls)
	})
}

type fakePurger struct {
	cutoffs []time.Time
	n       int64
	err     error
}

func (p *fakePurger) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.n, p.err
}

func TestRetentionCleaner(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("按保留时长计算截止时间", func(t *testing.T) {
		p := &fakePurger{n: 7}
		c := NewRetentionCleaner(p, 24*time.Hour, 0, nil)
		c.now = func() time.Time { return now }

		assert.Equal(t, int64(7), c.RunOnce(context.Background()))
		assert.Equal(t, int64(7), c.RunOnce(context.Background()))
		require.Len(t, p.cutoffs, 2)
		assert.Equal(t, now.Add(-24*time.Hour), p.cutoffs[0])
		assert.Equal(t, int64(14), c.Stats()["total_cleaned"])
	})

	t.Run("删除失败不计数", func(t *testing.T) {
		p := &fakePurger{err: errors.New("boom")}
		c := NewRetentionCleaner(p, time.Hour, time.Minute, nil)
		assert.Zero(t, c.RunOnce(context.Background()))
		assert.Equal(t, int64(0), c.Stats()["total_cleaned"])
	})

	t.Run("未配置保留时长时不运行", func(t *testing.T) {
		p := &fakePurger{}
		c := NewRetentionCleaner(p, 0, time.Millisecond, nil)
		c.Start(context.Background())
		assert.Empty(t, p.cutoffs)
	})

	t.Run("取消后退出", func(t *testing.T) {
		p := &fakePurger{}
		c := NewRetentionCleaner(p, time.Hour, time.Hour, nil)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			c.Start(ctx)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("cleaner 未退出")
		}
	})
}
