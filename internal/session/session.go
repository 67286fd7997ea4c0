package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 会话不存在
var ErrNotFound = errors.New("session: not found")

// Info 一条被旁路的 TCP 连接的会话状态
type Info struct {
	ConnID      string    `json:"conn_id"`
	RemoteAddr  string    `json:"remote_addr"`
	ServerID    string    `json:"server_id"`
	Transport   string    `json:"transport"`
	OpenedAt    time.Time `json:"opened_at"`
	LastSeen    time.Time `json:"last_seen"`
	ClosedAt    time.Time `json:"closed_at,omitempty"`
	Bytes       int64     `json:"bytes"`
	Units       int64     `json:"units"`
	Handshakes  int64     `json:"handshakes"`
	Declines    int64     `json:"declines"`
	LastControl string    `json:"last_control,omitempty"`

	// 最近一个单元的应用层方向：ecr_to_pt、pt_to_ecr 或 unknown
	LastDirection string `json:"last_direction,omitempty"`
}

// Closed 连接是否已断开
func (i *Info) Closed() bool { return !i.ClosedAt.IsZero() }

// Online 未断开且最近活动未超时
func (i *Info) Online(now time.Time, timeout time.Duration) bool {
	return !i.Closed() && now.Sub(i.LastSeen) <= timeout
}

// Activity 一次读取带来的增量
type Activity struct {
	At          time.Time
	Bytes       int64
	Units       int64
	Handshakes  int64
	Declines    int64
	Transport   string // 非空时覆盖
	LastControl string // 非空时覆盖

	LastDirection string // 非空时覆盖
}

// Manager 会话管理器接口，支持内存和 Redis 两种实现
type Manager interface {
	// Open 登记新连接，重复登记覆盖
	Open(ctx context.Context, info Info) error
	// Touch 累加活动计数并刷新最近活动时间
	Touch(ctx context.Context, connID string, a Activity) error
	// Close 标记连接断开
	Close(ctx context.Context, connID string, at time.Time) error
	// Get 查询单个会话
	Get(ctx context.Context, connID string) (*Info, error)
	// List 返回全部会话（含断开未过期的），按建立时间倒序
	List(ctx context.Context) ([]Info, error)
	// OnlineCount 在线连接数
	OnlineCount(ctx context.Context, now time.Time) (int, error)
}

func (i *Info) apply(a Activity) {
	if !a.At.IsZero() {
		i.LastSeen = a.At
	}
	i.Bytes += a.Bytes
	i.Units += a.Units
	i.Handshakes += a.Handshakes
	i.Declines += a.Declines
	if a.Transport != "" {
		i.Transport = a.Transport
	}
	if a.LastControl != "" {
		i.LastControl = a.LastControl
	}
	if a.LastDirection != "" {
		i.LastDirection = a.LastDirection
	}
}
