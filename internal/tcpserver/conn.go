package tcpserver

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ConnContext 单条 TCP 连接：读循环与回调
type ConnContext struct {
	s       *Server
	c       net.Conn
	seq     uint64
	id      string
	opened  time.Time
	onRead  func([]byte)
	onClose []func()
	closed  atomic.Bool
	doneC   chan struct{}
	once    sync.Once
	proto   atomic.Value // string: 识别出的协议，如 "zvt"
}

func newConnContext(s *Server, c net.Conn) *ConnContext {
	cc := &ConnContext{
		s:      s,
		c:      c,
		seq:    s.nextConnID.Add(1),
		id:     uuid.NewString(),
		opened: time.Now(),
		doneC:  make(chan struct{}),
	}
	cc.proto.Store("")
	return cc
}

// Seq 进程内递增序号
func (cc *ConnContext) Seq() uint64 { return cc.seq }

// ID 连接唯一标识（跨实例唯一，用作会话与抓包记录键）
func (cc *ConnContext) ID() string { return cc.id }

// OpenedAt 建链时间
func (cc *ConnContext) OpenedAt() time.Time { return cc.opened }

// RemoteAddr 返回远端地址；未关联底层连接时为 nil
func (cc *ConnContext) RemoteAddr() net.Addr {
	if cc.c == nil {
		return nil
	}
	return cc.c.RemoteAddr()
}

// Server 所属监听
func (cc *ConnContext) Server() *Server { return cc.s }

// SetOnRead 安装读取回调（收到原始字节时触发，切片在回调返回后会被复用）
func (cc *ConnContext) SetOnRead(h func([]byte)) { cc.onRead = h }

// OnClose 注册连接关闭回调
func (cc *ConnContext) OnClose(fn func()) { cc.onClose = append(cc.onClose, fn) }

// SetProtocol 设置连接所使用的协议标记（在 Mux 决策后调用）
func (cc *ConnContext) SetProtocol(p string) { cc.proto.Store(p) }

// Protocol 返回连接的协议标记
func (cc *ConnContext) Protocol() string {
	if s, ok := cc.proto.Load().(string); ok {
		return s
	}
	return ""
}

// Close 关闭连接
func (cc *ConnContext) Close() error {
	if !cc.closed.CompareAndSwap(false, true) || cc.c == nil {
		return nil
	}
	return cc.c.Close()
}

// run 读循环，阻塞直至连接结束
func (cc *ConnContext) run() {
	defer cc.finish()

	buf := make([]byte, 4096)
	for {
		if cc.s.cfg.ReadTimeout > 0 {
			_ = cc.c.SetReadDeadline(time.Now().Add(cc.s.cfg.ReadTimeout))
		}
		n, err := cc.c.Read(buf)
		if n > 0 {
			if cc.s.onRecvBytes != nil {
				cc.s.onRecvBytes(n)
			}
			if cc.onRead != nil {
				cc.onRead(buf[:n])
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// 空闲超时断开，由对端重连
				cc.s.logger.Debug("read idle timeout")
			}
			return
		}
		if cc.closed.Load() {
			return
		}
	}
}

func (cc *ConnContext) finish() {
	_ = cc.Close()
	cc.once.Do(func() {
		for _, fn := range cc.onClose {
			fn()
		}
		close(cc.doneC)
	})
}

// Done 返回连接关闭通知通道
func (cc *ConnContext) Done() <-chan struct{} { return cc.doneC }
