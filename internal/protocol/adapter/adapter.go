package adapter

// Adapter 连接级协议适配器，由 tcpserver.Mux 在首包初判后绑定
// - Sniff 以首包前缀判断是否属于本协议
// - ProcessBytes 处理后续原始字节（内部负责半包/粘包与重组）
// 每条连接一个实例，不在连接之间共享
type Adapter interface {
	Sniff(prefix []byte) bool
	ProcessBytes(p []byte) error
}
