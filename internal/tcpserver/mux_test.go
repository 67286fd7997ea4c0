package tcpserver

import (
	"bytes"
	"testing"

	padapter "github.com/taoyao-code/zvt-tap/internal/protocol/adapter"
)

type fakeAdapter struct {
	prefix []byte
	got    [][]byte
}

func (f *fakeAdapter) Sniff(p []byte) bool { return bytes.HasPrefix(p, f.prefix) }

func (f *fakeAdapter) ProcessBytes(p []byte) error {
	f.got = append(f.got, append([]byte(nil), p...))
	return nil
}

func TestMux_SniffAndDispatch(t *testing.T) {
	var a, b *fakeAdapter
	mux := NewMux(nil,
		Binding{Protocol: "a", New: func(*ConnContext) padapter.Adapter { a = &fakeAdapter{prefix: []byte{0x06}}; return a }},
		Binding{Protocol: "b", New: func(*ConnContext) padapter.Adapter { b = &fakeAdapter{prefix: []byte{0xFC, 0xFE}}; return b }},
	)

	cc := &ConnContext{}
	mux.BindToConn(cc)
	if cc.onRead == nil {
		t.Fatalf("onRead not set")
	}
	cc.onRead([]byte{0xFC, 0xFE, 0x05})
	cc.onRead([]byte{0x06, 0x01, 0x00})

	if cc.Protocol() != "b" {
		t.Fatalf("protocol=%q", cc.Protocol())
	}
	if len(b.got) != 2 || len(a.got) != 0 {
		t.Fatalf("a=%d b=%d", len(a.got), len(b.got))
	}
}

func TestMux_ShortFirstChunkBuffered(t *testing.T) {
	var a *fakeAdapter
	mux := NewMux(nil, Binding{Protocol: "a", New: func(*ConnContext) padapter.Adapter { a = &fakeAdapter{prefix: []byte{0x99, 0x99, 0x99}}; return a }})

	cc := &ConnContext{}
	mux.BindToConn(cc)
	cc.onRead([]byte{0x06})
	if cc.Protocol() != "a" || len(a.got) != 1 {
		t.Fatalf("short first chunk not handed to default adapter")
	}
}

func TestMux_UnknownClosed(t *testing.T) {
	mux := NewMux(nil, Binding{Protocol: "a", New: func(*ConnContext) padapter.Adapter { return &fakeAdapter{prefix: []byte{0x06}} }})

	cc := &ConnContext{}
	mux.BindToConn(cc)
	cc.onRead([]byte("GET / HTTP/1.1"))
	if !cc.closed.Load() {
		t.Fatalf("connection should be closed")
	}
}
