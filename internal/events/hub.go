package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// Message WebSocket 推送的外层结构
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Subscriber 一个进程内订阅者；C 在取消订阅或 Hub 关闭后被关闭
type Subscriber struct {
	ID     uint64
	ConnID string // 为空表示订阅全部连接
	C      chan []byte

	dropped atomic.Int64
}

// Dropped 因缓冲满而丢弃的消息数
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Hub 进程内广播，供 WebSocket 实时推送；慢订阅者丢消息不阻塞发布
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscriber
	nextID uint64
	closed bool
}

// NewHub 创建广播中心
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscriber)}
}

// Subscribe connID 为空时接收全部事件；buf<=0 时为 64
func (h *Hub) Subscribe(connID string, buf int) *Subscriber {
	if buf <= 0 {
		buf = 64
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	s := &Subscriber{ID: h.nextID, ConnID: connID, C: make(chan []byte, buf)}
	if h.closed {
		close(s.C)
		return s
	}
	h.subs[s.ID] = s
	return s
}

// Unsubscribe 取消订阅并关闭通道，可重复调用
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.ID]; ok {
		delete(h.subs, s.ID)
		close(s.C)
	}
}

// Count 当前订阅者数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Name() string { return "websocket" }

// Publish 广播事件
func (h *Hub) Publish(_ context.Context, ev *UnitEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.subs) == 0 {
		return nil
	}
	data, err := json.Marshal(Message{Type: "unit", Data: ev})
	if err != nil {
		return err
	}
	for _, s := range h.subs {
		if s.ConnID != "" && s.ConnID != ev.ConnID {
			continue
		}
		select {
		case s.C <- data:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// Close 关闭全部订阅
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.C)
		delete(h.subs, id)
	}
	return nil
}
