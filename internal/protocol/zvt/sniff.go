package zvt

import "errors"

// Transport 首包判定出的传输形式
type Transport uint8

const (
	TransportNone Transport = iota
	TransportSerialHandshake
	TransportSerial
	TransportStream
)

func (t Transport) String() string {
	switch t {
	case TransportSerialHandshake:
		return "serial_handshake"
	case TransportSerial:
		return "serial"
	case TransportStream:
		return "tcp"
	default:
		return "none"
	}
}

// IsSerial 串口传输（含单字节握手）
func (t Transport) IsSerial() bool { return t == TransportSerialHandshake || t == TransportSerial }

// Sniff 无上下文地判断一段字节属于哪种传输形式（启发式）
// 以未知控制字段开头的 TCP 数据会被拒绝，即便它可能是合法单元
func (p *Parser) Sniff(buf []byte) Transport {
	switch {
	case len(buf) == 1 && isHandshake(buf[0]):
		return TransportSerialHandshake
	case len(buf) >= 2 && buf[0] == DLE && buf[1] == STX:
		return TransportSerial
	case len(buf) >= MinUnitLen && p.validControlField(buf):
		return TransportStream
	default:
		return TransportNone
	}
}

// Dissection 顶层解析结果
type Dissection struct {
	Transport Transport
	Serial    *SerialFrame // 串口传输
	Units     []*Unit      // TCP/IP 传输
	Consumed  int
	NeedMore  bool
	Declined  bool // 流中途出现无法识别的单元，Units 为此前已解出的部分
}

// Frames 按解码器的帧形式展开，Raw 引用 buf
func (d *Dissection) Frames(buf []byte) []*Frame {
	if f := d.Serial; f != nil {
		return []*Frame{newSerialFrame(f, buf[:f.Size])}
	}
	frames := make([]*Frame, 0, len(d.Units))
	off := 0
	for _, u := range d.Units {
		frames = append(frames, &Frame{Transport: TransportStream, Unit: u, Raw: buf[off : off+u.Size]})
		off += u.Size
	}
	return frames
}

// Dissect 判定传输形式后分派到串口或流式解析
func (p *Parser) Dissect(buf []byte) (*Dissection, error) {
	t := p.Sniff(buf)
	d := &Dissection{Transport: t}
	switch t {
	case TransportSerialHandshake, TransportSerial:
		f, err := p.ParseSerial(buf)
		if errors.Is(err, ErrNeedMore) {
			d.NeedMore = true
			return d, nil
		}
		if err != nil {
			return nil, err
		}
		d.Serial = f
		d.Consumed = f.Size
		return d, nil
	case TransportStream:
		res := p.DissectStream(buf)
		if res.Declined && res.Consumed == 0 {
			return nil, ErrNotZVT
		}
		d.Units = res.Units
		d.Consumed = res.Consumed
		d.NeedMore = res.NeedMore
		d.Declined = res.Declined
		return d, nil
	default:
		return nil, ErrNotZVT
	}
}

// ChunkResult 一段无上下文字节的完整解析结果
type ChunkResult struct {
	Dissection *Dissection
	Frames     []*Frame
	Consumed   int
	Pending    int // 末尾不完整帧的字节数
	NeedMore   bool
}

// DissectChunk 由 Dissect 判定传输形式并解析首帧；串口帧之后的剩余字节按串口流继续解码
// 中途遇到无法识别的数据时返回已解出的部分和 ErrNotZVT
func (p *Parser) DissectChunk(buf []byte) (*ChunkResult, error) {
	d, err := p.Dissect(buf)
	if err != nil {
		return nil, err
	}
	res := &ChunkResult{Dissection: d, Frames: d.Frames(buf), Consumed: d.Consumed}
	switch {
	case d.Declined:
		return res, ErrNotZVT
	case d.NeedMore:
		res.NeedMore = true
		res.Pending = len(buf) - d.Consumed
		return res, nil
	case d.Consumed == len(buf) || !d.Transport.IsSerial():
		return res, nil
	}

	dec := NewStreamDecoder(p, len(buf))
	dec.SetMode(TransportSerial)
	frames, err := dec.Feed(buf[d.Consumed:])
	for _, fr := range frames {
		res.Frames = append(res.Frames, fr)
		res.Consumed += len(fr.Raw)
	}
	if err != nil {
		return res, err
	}
	res.Pending = dec.Pending()
	res.NeedMore = res.Pending > 0
	return res, nil
}
