package zvt

import "sync"

// Handler 帧处理器
type Handler func(f *Frame) error

// Table 路由表：控制字段 -> 处理器；另有短状态、握手与兜底处理器
type Table struct {
	mu        sync.RWMutex
	m         map[ControlCode]Handler
	status    Handler
	handshake Handler
	fallback  Handler
}

func NewTable() *Table { return &Table{m: make(map[ControlCode]Handler)} }

func (t *Table) Register(code ControlCode, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[code] = h
}

// RegisterStatus 短状态应答处理器
func (t *Table) RegisterStatus(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = h
}

// RegisterHandshake 串口 ACK/NAK 处理器
func (t *Table) RegisterHandshake(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handshake = h
}

// RegisterDefault 未注册控制字段的兜底处理器
func (t *Table) RegisterDefault(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback = h
}

func (t *Table) Route(f *Frame) error {
	t.mu.RLock()
	var h Handler
	switch {
	case f.Unit == nil:
		h = t.handshake
	case f.Unit.IsStatus():
		h = t.status
	default:
		h = t.m[f.Unit.Control]
	}
	if h == nil {
		h = t.fallback
	}
	t.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h(f)
}
