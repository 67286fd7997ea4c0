package zvt

import (
	"errors"
	"fmt"
)

// ErrBufferOverflow 待拼接数据超过上限
var ErrBufferOverflow = errors.New("zvt: reassembly buffer overflow")

// DefaultMaxBuffer 最大 APDU 加串口帧头尾（未转义）
const DefaultMaxBuffer = MaxUnitLen + 6

// MaxSerialFrameLen 串口帧线上最大长度：APDU 每个字节都可能是需转义的 DLE
const MaxSerialFrameLen = 2*MaxUnitLen + 6

// Frame 解码器输出的一条记录：串口握手、串口帧内 APDU 或 TCP APDU
type Frame struct {
	Transport Transport
	Handshake byte // 仅握手
	Unit      *Unit
	CRC       uint16 // 仅串口帧
	Raw       []byte // 线上原始字节（串口帧含 DLE STX..ETX CRC）
}

// StreamDecoder 单条字节流的拼接状态（半包/粘包），不可在流之间共享
// 输出的 Frame 引用的字节在后续 Feed 中不会被改写
type StreamDecoder struct {
	parser *Parser
	buf    []byte
	maxBuf int
	mode   Transport
	fixed  bool
	synced bool // 已解出过单元，之后只按长度字段切分
	waits  int
}

// NewStreamDecoder 创建流式解码器
func NewStreamDecoder(p *Parser, maxBuf int) *StreamDecoder {
	if p == nil {
		p = NewParser(nil, Options{})
	}
	if maxBuf <= 0 {
		maxBuf = DefaultMaxBuffer
	}
	return &StreamDecoder{parser: p, maxBuf: maxBuf}
}

// Feed 追加数据并尽可能解出多帧
// 数据不属于 ZVT 时丢弃缓冲并返回 ErrNotZVT（已解出的帧仍返回）
func (d *StreamDecoder) Feed(p []byte) ([]*Frame, error) {
	if len(p) == 0 {
		return nil, nil
	}
	d.buf = append(d.buf, p...)

	if d.mode == TransportNone {
		mode, err := d.detect()
		if err != nil {
			d.Reset()
			return nil, err
		}
		if mode == TransportNone {
			d.waits++
			return nil, nil
		}
		d.mode = mode
	}

	var (
		frames []*Frame
		err    error
	)
	if d.mode == TransportSerial {
		frames, err = d.feedSerial()
	} else {
		frames, err = d.feedStream()
	}
	if err != nil {
		d.Reset()
		return frames, err
	}
	if len(d.buf) > d.limit() {
		n := len(d.buf)
		d.Reset()
		return frames, fmt.Errorf("%w: %d bytes pending", ErrBufferOverflow, n)
	}
	return frames, nil
}

// detect 由缓冲起始字节决定传输形式；数据不足时返回 TransportNone
// 单独的 ACK 与 0x06xx 控制字段前缀相同，需等待下一个字节
func (d *StreamDecoder) detect() (Transport, error) {
	b := d.buf
	switch {
	case b[0] == DLE:
		if len(b) < 2 {
			return TransportNone, nil
		}
		if b[1] != STX {
			return TransportNone, ErrNotZVT
		}
		return TransportSerial, nil
	case len(b) >= MinUnitLen && d.parser.validControlField(b):
		return TransportStream, nil
	case b[0] == NAK:
		return TransportSerial, nil
	case b[0] == ACK:
		if len(b) == 1 {
			return TransportNone, nil
		}
		if b[1] == DLE || isHandshake(b[1]) {
			return TransportSerial, nil
		}
		if len(b) < MinUnitLen {
			return TransportNone, nil
		}
		return TransportNone, ErrNotZVT
	case len(b) < MinUnitLen:
		return TransportNone, nil
	default:
		return TransportNone, ErrNotZVT
	}
}

func (d *StreamDecoder) feedSerial() ([]*Frame, error) {
	var frames []*Frame
	off := 0
	for off < len(d.buf) {
		f, err := d.parser.ParseSerial(d.buf[off:])
		if errors.Is(err, ErrNeedMore) {
			d.waits++
			break
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, newSerialFrame(f, d.buf[off:off+f.Size]))
		off += f.Size
	}
	d.consume(off)
	return frames, nil
}

// limit maxBuf 按未转义的帧计算，串口模式放大到转义后的最坏长度
func (d *StreamDecoder) limit() int {
	if d.mode == TransportSerial && d.maxBuf > 6 {
		return 2*d.maxBuf - 6
	}
	return d.maxBuf
}

func newSerialFrame(f *SerialFrame, raw []byte) *Frame {
	if f.IsHandshake() {
		return &Frame{Transport: TransportSerialHandshake, Handshake: f.Handshake, Raw: raw}
	}
	return &Frame{Transport: TransportSerial, Unit: f.Unit, CRC: f.CRC, Raw: raw}
}

func (d *StreamDecoder) feedStream() ([]*Frame, error) {
	// 固定模式跳过 detect，流的首个单元在此判定
	if !d.synced && len(d.buf) >= MinUnitLen && !d.parser.validControlField(d.buf) {
		return nil, ErrNotZVT
	}
	res := d.parser.DissectStream(d.buf)
	frames := make([]*Frame, 0, len(res.Units))
	off := 0
	for _, u := range res.Units {
		frames = append(frames, &Frame{Transport: TransportStream, Unit: u, Raw: d.buf[off : off+u.Size]})
		off += u.Size
	}
	if len(res.Units) > 0 {
		d.synced = true
	}
	if res.Declined {
		return frames, ErrNotZVT
	}
	if res.NeedMore {
		d.waits++
	}
	d.consume(res.Consumed)
	return frames, nil
}

// consume 丢弃已解析前缀；剩余字节复制到新缓冲，避免改写已输出帧的视图
func (d *StreamDecoder) consume(n int) {
	if n <= 0 {
		return
	}
	if n >= len(d.buf) {
		d.buf = nil
		return
	}
	d.buf = append([]byte(nil), d.buf[n:]...)
}

// Reset 清空缓冲并重新判定首个单元；固定传输形式时保留
func (d *StreamDecoder) Reset() {
	d.buf = nil
	d.synced = false
	if !d.fixed {
		d.mode = TransportNone
	}
}

// SetMode 固定传输形式（TransportStream 或 TransportSerial），TransportNone 恢复自动识别
func (d *StreamDecoder) SetMode(t Transport) {
	if t == TransportSerialHandshake {
		t = TransportSerial
	}
	d.mode = t
	d.fixed = t != TransportNone
}

// Pending 等待拼接的字节数
func (d *StreamDecoder) Pending() int { return len(d.buf) }

// Waits 累计请求更多数据的次数
func (d *StreamDecoder) Waits() int { return d.waits }

// Mode 当前传输形式
func (d *StreamDecoder) Mode() Transport { return d.mode }
