package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"go.uber.org/zap"
)

// 拒绝建链原因（指标标签）
const (
	RejectLimit = "limit"
	RejectRate  = "rate"
)

// Server ZVT 旁路 TCP 监听
type Server struct {
	cfg   cfgpkg.TCPConfig
	addr  string
	ln    net.Listener
	wg    sync.WaitGroup
	stopC chan struct{}
	once  sync.Once

	logger      *zap.Logger
	limiter     *ConnectionLimiter
	rateLimiter *RateLimiter
	nextConnID  atomic.Uint64
	running     atomic.Bool

	connHandler func(*ConnContext)
	// 可选指标回调
	onAccept    func()
	onReject    func(reason string)
	onRecvBytes func(n int)
}

// New 创建 TCP 监听；addr 为空时 Start 返回错误
func New(cfg cfgpkg.TCPConfig, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		addr:   addr,
		stopC:  make(chan struct{}),
		logger: logger,
	}
	if cfg.MaxConnections > 0 {
		s.limiter = NewConnectionLimiter(cfg.MaxConnections, 100*time.Millisecond)
	}
	if cfg.RateLimit.PerSecond > 0 {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	}
	return s
}

// SetConnHandler 设置新连接回调（在读循环开始前调用，用于绑定协议适配器）
func (s *Server) SetConnHandler(h func(*ConnContext)) { s.connHandler = h }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onReject func(string), onRecvBytes func(int)) {
	s.onAccept, s.onReject, s.onRecvBytes = onAccept, onReject, onRecvBytes
}

// Logger 返回日志器
func (s *Server) Logger() *zap.Logger { return s.logger }

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	if s.addr == "" {
		return errors.New("tcpserver: listen address is empty")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcpserver: listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopC:
				return
			default:
			}
			// 短暂错误等待后重试
			s.logger.Warn("accept error", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if s.rateLimiter != nil && !s.rateLimiter.Allow() {
			s.reject(conn, RejectRate)
			continue
		}
		if s.limiter != nil {
			if err := s.limiter.Acquire(context.Background()); err != nil {
				s.reject(conn, RejectLimit)
				continue
			}
		}
		if s.onAccept != nil {
			s.onAccept()
		}

		cc := newConnContext(s, conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if s.limiter != nil {
				defer s.limiter.Release()
			}
			if s.connHandler != nil {
				s.connHandler(cc)
			}
			cc.run()
		}()
	}
}

func (s *Server) reject(c net.Conn, reason string) {
	s.logger.Warn("connection rejected",
		zap.String("remote_addr", c.RemoteAddr().String()),
		zap.String("reason", reason),
	)
	if s.onReject != nil {
		s.onReject(reason)
	}
	_ = c.Close()
}

// Addr 实际监听地址（未启动时为 nil）
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Running 是否在监听
func (s *Server) Running() bool { return s.running.Load() }

// ActiveConnections 当前连接数；未启用连接数限制时为 0
func (s *Server) ActiveConnections() int {
	if s.limiter == nil {
		return 0
	}
	return s.limiter.Current()
}

// MaxConnections 最大连接数；0 表示不限制
func (s *Server) MaxConnections() int {
	if s.limiter == nil {
		return 0
	}
	return s.limiter.MaxConnections()
}

// LimiterStats 连接数限制统计
func (s *Server) LimiterStats() *LimiterStats {
	if s.limiter == nil {
		return nil
	}
	st := s.limiter.Stats()
	return &st
}

// RateLimiterStats 建链速率统计
func (s *Server) RateLimiterStats() *RateLimiterStats {
	if s.rateLimiter == nil {
		return nil
	}
	st := s.rateLimiter.Stats()
	return &st
}

// Shutdown 关闭监听与全部连接并等待退出
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		close(s.stopC)
		s.running.Store(false)
		if s.ln != nil {
			_ = s.ln.Close()
		}
	})
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
