package zvt

import "encoding/binary"

// SerialFrame 串口传输层的一帧：单字节握手，或 DLE STX + APDU + DLE ETX + CRC
type SerialFrame struct {
	Handshake byte   // ACK/NAK；带帧时为 0
	Unit      *Unit  // 内嵌 APDU
	CRC       uint16 // 小端，仅提取不校验
	Stuffed   bool   // 帧体内含 DLE DLE 转义
	Trailing  []byte // 帧体中 APDU 之后的多余字节
	Size      int    // 线上总长度（含转义字节）
}

// IsHandshake 是否为单字节握手
func (f *SerialFrame) IsHandshake() bool { return f.Unit == nil }

// ParseSerial 解析 buf 起始处的一个串口帧
func (p *Parser) ParseSerial(buf []byte) (*SerialFrame, error) {
	if len(buf) == 0 {
		return nil, ErrNeedMore
	}
	if isHandshake(buf[0]) {
		return &SerialFrame{Handshake: buf[0], Size: 1}, nil
	}
	if buf[0] != DLE {
		return nil, ErrNotZVT
	}
	if len(buf) < 2 {
		return nil, ErrNeedMore
	}
	if buf[1] != STX {
		return nil, ErrNotZVT
	}

	end, stuffed, err := findETX(buf, 2)
	if err != nil {
		return nil, err
	}
	body := buf[2:end]
	if stuffed {
		body = unstuff(body)
	}

	u, err := p.ParseUnit(body, 0)
	if err != nil {
		return nil, err
	}

	// DLE ETX 之后是 2 字节 CRC
	crcAt := end + 2
	if len(buf) < crcAt+2 {
		return nil, ErrNeedMore
	}
	f := &SerialFrame{
		Unit:    u,
		CRC:     binary.LittleEndian.Uint16(buf[crcAt : crcAt+2]),
		Stuffed: stuffed,
		Size:    crcAt + 2,
	}
	if u.Size < len(body) {
		f.Trailing = body[u.Size:]
	}
	return f, nil
}

// findETX 从 from 开始查找未转义的 DLE ETX，返回 DLE 的位置
func findETX(buf []byte, from int) (int, bool, error) {
	stuffed := false
	for i := from; i < len(buf); i++ {
		if buf[i] != DLE {
			continue
		}
		if i+1 >= len(buf) {
			return 0, stuffed, ErrNeedMore
		}
		switch buf[i+1] {
		case ETX:
			return i, stuffed, nil
		case DLE:
			stuffed = true
			i++
		default:
			return 0, stuffed, ErrNotZVT
		}
	}
	return 0, stuffed, ErrNeedMore
}

// unstuff 将 DLE DLE 还原为单个 DLE，返回新切片
func unstuff(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		out = append(out, b[i])
		if b[i] == DLE && i+1 < len(b) && b[i+1] == DLE {
			i++
		}
	}
	return out
}

// Stuff 对帧体做 DLE 转义
func Stuff(b []byte) []byte {
	out := make([]byte, 0, len(b)+4)
	for _, c := range b {
		out = append(out, c)
		if c == DLE {
			out = append(out, DLE)
		}
	}
	return out
}
