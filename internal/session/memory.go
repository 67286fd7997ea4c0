package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryManager 单实例内存实现；断开超过 timeout 的会话由 Sweep 清除
type MemoryManager struct {
	mu       sync.RWMutex
	sessions map[string]*Info
	timeout  time.Duration
}

// NewMemory timeout<=0 时为 10 分钟
func NewMemory(timeout time.Duration) *MemoryManager {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &MemoryManager{sessions: make(map[string]*Info), timeout: timeout}
}

var _ Manager = (*MemoryManager)(nil)

func (m *MemoryManager) Open(_ context.Context, info Info) error {
	if info.LastSeen.IsZero() {
		info.LastSeen = info.OpenedAt
	}
	m.mu.Lock()
	m.sessions[info.ConnID] = &info
	m.mu.Unlock()
	return nil
}

func (m *MemoryManager) Touch(_ context.Context, connID string, a Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	s.apply(a)
	return nil
}

func (m *MemoryManager) Close(_ context.Context, connID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	s.ClosedAt = at
	return nil
}

func (m *MemoryManager) Get(_ context.Context, connID string) (*Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[connID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryManager) List(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out, nil
}

func (m *MemoryManager) OnlineCount(_ context.Context, now time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.Online(now, m.timeout) {
			n++
		}
	}
	return n, nil
}

// Sweep 清除断开超过 timeout 的会话，返回清除数量
func (m *MemoryManager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.Closed() && now.Sub(s.ClosedAt) > m.timeout {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
