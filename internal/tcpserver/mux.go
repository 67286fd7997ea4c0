package tcpserver

import (
	padapter "github.com/taoyao-code/zvt-tap/internal/protocol/adapter"
	"go.uber.org/zap"
)

// sniffLen 首包初判使用的前缀长度
const sniffLen = 8

// Binding 协议名与每连接适配器构造函数
type Binding struct {
	Protocol string
	New      func(cc *ConnContext) padapter.Adapter
}

// Mux 多协议复用器：首包初判 -> 绑定协议 -> 直通处理
type Mux struct {
	bindings []Binding
	logger   *zap.Logger
}

func NewMux(logger *zap.Logger, bindings ...Binding) *Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mux{bindings: bindings, logger: logger}
}

// BindToConn 为连接安装 onRead；识别失败的连接直接关闭
func (m *Mux) BindToConn(cc *ConnContext) {
	adapters := make([]padapter.Adapter, len(m.bindings))
	for i, b := range m.bindings {
		adapters[i] = b.New(cc)
	}

	var bound padapter.Adapter
	cc.SetOnRead(func(p []byte) {
		if bound == nil {
			pref := p
			if len(pref) > sniffLen {
				pref = pref[:sniffLen]
			}
			for i, a := range adapters {
				if a.Sniff(pref) {
					bound = a
					cc.SetProtocol(m.bindings[i].Protocol)
					m.logger.Info("protocol identified",
						zap.String("conn_id", cc.ID()),
						zap.String("remote_addr", remoteAddr(cc)),
						zap.String("protocol", m.bindings[i].Protocol),
					)
					break
				}
			}
			if bound == nil {
				// 单个 ACK 或不足三字节的首包可能只是前缀不足，交给首个适配器缓冲
				if len(p) < 3 && len(adapters) > 0 {
					bound = adapters[0]
					cc.SetProtocol(m.bindings[0].Protocol)
				} else {
					m.logger.Warn("unknown protocol, closing",
						zap.String("conn_id", cc.ID()),
						zap.String("remote_addr", remoteAddr(cc)),
						zap.Int("data_len", len(p)),
					)
					_ = cc.Close()
					return
				}
			}
		}
		if err := bound.ProcessBytes(p); err != nil {
			m.logger.Debug("process bytes",
				zap.String("conn_id", cc.ID()),
				zap.Error(err),
			)
		}
	})
}

func remoteAddr(cc *ConnContext) string {
	if a := cc.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
