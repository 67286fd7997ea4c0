package tcpserver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
)

func TestServer_ReceiveAndClose(t *testing.T) {
	srv := New(cfgpkg.TCPConfig{ReadTimeout: time.Second, MaxConnections: 4}, "127.0.0.1:0", nil)

	var (
		mu     sync.Mutex
		got    []byte
		closed = make(chan string, 1)
	)
	srv.SetConnHandler(func(cc *ConnContext) {
		cc.SetOnRead(func(p []byte) {
			mu.Lock()
			got = append(got, p...)
			mu.Unlock()
		})
		cc.OnClose(func() { closed <- cc.ID() })
	})
	var accepted int
	srv.SetMetricsCallbacks(func() { accepted++ }, nil, nil)

	require.NoError(t, srv.Start())
	require.True(t, srv.Running())

	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	_, err = c.Write([]byte{0x06, 0x01, 0x00})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	select {
	case id := <-closed:
		assert.NotEmpty(t, id)
	case <-time.After(2 * time.Second):
		t.Fatal("connection close not observed")
	}
	mu.Lock()
	assert.Equal(t, []byte{0x06, 0x01, 0x00}, got)
	mu.Unlock()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 4, srv.MaxConnections())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.False(t, srv.Running())
}

func TestServer_EmptyAddr(t *testing.T) {
	srv := New(cfgpkg.TCPConfig{}, "", nil)
	assert.Error(t, srv.Start())
	assert.Nil(t, srv.Addr())
	assert.Nil(t, srv.LimiterStats())
}
