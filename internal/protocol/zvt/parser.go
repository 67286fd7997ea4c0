package zvt

import "encoding/binary"

// Options 解析选项
type Options struct {
	// StrictMinLength 已知指令的负载短于最小长度时拒绝该单元
	StrictMinLength bool
	// StatusLengthField 短状态应答后跟长度字段（与普通 APDU 相同）
	StatusLengthField bool
}

// Unit 一个完整的 ZVT APDU
type Unit struct {
	Control     ControlCode // 短状态应答为 CtrlNone
	CCRC        byte        // 短状态应答标记（0x80/0x84）
	APRC        byte        // 短状态应答状态码
	LengthField int         // 长度字段取值
	LengthWidth int         // 长度字段字节数：1、3；无长度字段的短状态应答为 0
	Payload     []byte      // 源缓冲区视图
	Size        int         // 线上总长度
	Direction   Direction
	Kind        PayloadKind
	Auth        *AuthPayload // 仅 PayloadAuthorisation
}

// IsStatus 是否为短状态应答
func (u *Unit) IsStatus() bool { return u.Control == CtrlNone }

// Source 源端地址（ECR/PT），方向未知时为空
func (u *Unit) Source() string {
	src, _ := u.Direction.Endpoints()
	return src
}

// Destination 目的端地址
func (u *Unit) Destination() string {
	_, dst := u.Direction.Endpoints()
	return dst
}

// Parser 无状态解析器，构建后只读，可并发使用
type Parser struct {
	reg  *Registry
	opts Options
}

// NewParser reg 为 nil 时使用默认表
func NewParser(reg *Registry, opts Options) *Parser {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Parser{reg: reg, opts: opts}
}

// Registry 返回解析器使用的指令表
func (p *Parser) Registry() *Registry { return p.reg }

// Options 返回解析选项
func (p *Parser) Options() Options { return p.opts }

// ParseUnit 从 buf[off:] 解析一个 APDU
// 返回 ErrNeedMore 表示数据不足（稍后在同一偏移重试），ErrNotZVT 表示无法识别
func (p *Parser) ParseUnit(buf []byte, off int) (*Unit, error) {
	if off < 0 || off > len(buf) {
		return nil, ErrNotZVT
	}
	b := buf[off:]
	if len(b) < MinUnitLen {
		return nil, ErrNeedMore
	}

	if isStatusMarker(b[0]) {
		return p.parseStatus(b)
	}

	length, width := readLength(b, 2)
	if width == 0 || len(b) < 2+width+length {
		return nil, ErrNeedMore
	}

	u := &Unit{
		Control:     ControlCode(binary.BigEndian.Uint16(b[0:2])),
		LengthField: length,
		LengthWidth: width,
		Payload:     b[2+width : 2+width+length],
		Size:        2 + width + length,
	}
	if d, ok := p.reg.Lookup(u.Control); ok {
		if p.opts.StrictMinLength && length < d.MinLen {
			return nil, ErrNotZVT
		}
		u.Direction = d.Direction
		u.Kind = d.Payload
	}
	if u.Kind == PayloadAuthorisation {
		u.Auth = DecodeAuthorisation(u.Payload)
	}
	return u, nil
}

// parseStatus 短状态应答：CCRC + APRC，按选项决定是否带长度字段
func (p *Parser) parseStatus(b []byte) (*Unit, error) {
	u := &Unit{Control: CtrlNone, CCRC: b[0], APRC: b[1], Size: 2}
	if !p.opts.StatusLengthField {
		u.Payload = b[2:2]
		return u, nil
	}
	length, width := readLength(b, 2)
	if width == 0 || len(b) < 2+width+length {
		return nil, ErrNeedMore
	}
	u.LengthField = length
	u.LengthWidth = width
	u.Payload = b[2+width : 2+width+length]
	u.Size = 2 + width + length
	return u, nil
}

// readLength 读取 at 处的长度字段；扩展长度字节不足时 width 为 0
func readLength(b []byte, at int) (length, width int) {
	if len(b) <= at {
		return 0, 0
	}
	if b[at] != lenEscape {
		return int(b[at]), 1
	}
	if len(b) < at+3 {
		return 0, 0
	}
	return int(binary.BigEndian.Uint16(b[at+1 : at+3])), 3
}

// validControlField 起始字节是短状态标记或已知控制字段
func (p *Parser) validControlField(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	if isStatusMarker(b[0]) {
		return true
	}
	return p.reg.Known(ControlCode(binary.BigEndian.Uint16(b[0:2])))
}
