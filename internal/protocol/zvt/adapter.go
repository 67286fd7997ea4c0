package zvt

import (
	"go.uber.org/zap"
)

// Adapter ZVT 协议适配器：流式解码 + 路由表
type Adapter struct {
	parser  *Parser
	decoder *StreamDecoder
	table   *Table
	logger  *zap.Logger
}

// NewAdapter 每条连接一个实例
func NewAdapter(p *Parser, maxBuf int) *Adapter {
	if p == nil {
		p = NewParser(nil, Options{})
	}
	return &Adapter{
		parser:  p,
		decoder: NewStreamDecoder(p, maxBuf),
		table:   NewTable(),
		logger:  zap.NewNop(),
	}
}

// SetLogger 设置日志器
func (a *Adapter) SetLogger(l *zap.Logger) {
	if l != nil {
		a.logger = l
	}
}

// Register 注册指令处理器
func (a *Adapter) Register(code ControlCode, h Handler) { a.table.Register(code, h) }

// RegisterStatus 注册短状态应答处理器
func (a *Adapter) RegisterStatus(h Handler) { a.table.RegisterStatus(h) }

// RegisterHandshake 注册握手处理器
func (a *Adapter) RegisterHandshake(h Handler) { a.table.RegisterHandshake(h) }

// RegisterDefault 注册兜底处理器
func (a *Adapter) RegisterDefault(h Handler) { a.table.RegisterDefault(h) }

// Decoder 返回连接的解码状态
func (a *Adapter) Decoder() *StreamDecoder { return a.decoder }

// Parser 返回解析器
func (a *Adapter) Parser() *Parser { return a.parser }

// ProcessBytes 处理上行字节流
func (a *Adapter) ProcessBytes(p []byte) error {
	frames, derr := a.decoder.Feed(p)
	for _, fr := range frames {
		if err := a.table.Route(fr); err != nil {
			return err
		}
	}
	if derr != nil {
		a.logger.Debug("zvt decode stopped",
			zap.Int("chunk_len", len(p)),
			zap.Int("frames", len(frames)),
			zap.Error(derr),
		)
		return derr
	}
	if a.decoder.Pending() > 0 {
		a.logger.Debug("zvt unit incomplete, waiting for next segment",
			zap.Int("pending", a.decoder.Pending()),
		)
	}
	return nil
}

// Sniff 首包初判；以 ACK/NAK 开头的串口数据同样接受
func (a *Adapter) Sniff(prefix []byte) bool {
	if len(prefix) > 0 && isHandshake(prefix[0]) {
		return true
	}
	return a.parser.Sniff(prefix) != TransportNone
}
