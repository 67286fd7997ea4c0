package zvt

import (
	"encoding/hex"
	"fmt"
)

// FieldView 数据项展示结构
type FieldView struct {
	Tag    string `json:"tag" yaml:"tag"`
	Name   string `json:"name" yaml:"name"`
	Offset int    `json:"offset" yaml:"offset"`
	Value  string `json:"value" yaml:"value"`
}

// StatusView 短状态应答展示结构
type StatusView struct {
	CCRC string `json:"ccrc" yaml:"ccrc"`
	APRC string `json:"aprc" yaml:"aprc"`
}

// UnitView APDU 展示结构（API、事件、命令行共用）
type UnitView struct {
	Control     string      `json:"control,omitempty" yaml:"control,omitempty"`
	Name        string      `json:"name" yaml:"name"`
	Status      *StatusView `json:"status,omitempty" yaml:"status,omitempty"`
	Direction   string      `json:"direction" yaml:"direction"`
	Source      string      `json:"src,omitempty" yaml:"src,omitempty"`
	Destination string      `json:"dst,omitempty" yaml:"dst,omitempty"`
	LengthField int         `json:"length" yaml:"length"`
	LengthWidth int         `json:"length_width" yaml:"length_width"`
	Size        int         `json:"size" yaml:"size"`
	Payload     string      `json:"payload,omitempty" yaml:"payload,omitempty"`
	Fields      []FieldView `json:"fields,omitempty" yaml:"fields,omitempty"`
	FieldsStop  string      `json:"fields_stop,omitempty" yaml:"fields_stop,omitempty"`
	Unparsed    string      `json:"unparsed,omitempty" yaml:"unparsed,omitempty"`
}

// SerialView 串口帧展示结构
type SerialView struct {
	Handshake string    `json:"handshake,omitempty" yaml:"handshake,omitempty"`
	CRC       string    `json:"crc,omitempty" yaml:"crc,omitempty"`
	Stuffed   bool      `json:"stuffed,omitempty" yaml:"stuffed,omitempty"`
	Trailing  string    `json:"trailing,omitempty" yaml:"trailing,omitempty"`
	Size      int       `json:"size" yaml:"size"`
	Unit      *UnitView `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// DissectionView 顶层解析结果展示结构
type DissectionView struct {
	Transport string      `json:"transport" yaml:"transport"`
	Consumed  int         `json:"consumed" yaml:"consumed"`
	NeedMore  bool        `json:"need_more,omitempty" yaml:"need_more,omitempty"`
	Declined  bool        `json:"declined,omitempty" yaml:"declined,omitempty"`
	Serial    *SerialView `json:"serial,omitempty" yaml:"serial,omitempty"`
	Units     []UnitView  `json:"units,omitempty" yaml:"units,omitempty"`
}

// NewUnitView 由 APDU 构造展示结构
func NewUnitView(reg *Registry, u *Unit) UnitView {
	if reg == nil {
		reg = DefaultRegistry()
	}
	v := UnitView{
		Direction:   u.Direction.String(),
		Source:      u.Source(),
		Destination: u.Destination(),
		LengthField: u.LengthField,
		LengthWidth: u.LengthWidth,
		Size:        u.Size,
		Payload:     hex.EncodeToString(u.Payload),
	}
	if u.IsStatus() {
		v.Name = StatusName(u.CCRC)
		v.Status = &StatusView{CCRC: fmt.Sprintf("0x%02X", u.CCRC), APRC: fmt.Sprintf("0x%02X", u.APRC)}
	} else {
		v.Control = u.Control.String()
		v.Name = reg.Name(u.Control)
	}
	if u.Auth != nil {
		for _, f := range u.Auth.Fields {
			v.Fields = append(v.Fields, FieldView{
				Tag:    fmt.Sprintf("0x%02X", f.Tag),
				Name:   f.Name,
				Offset: f.Offset,
				Value:  hex.EncodeToString(f.Value),
			})
		}
		if u.Auth.Stop != StopEnd {
			v.FieldsStop = fmt.Sprintf("%s (%s)", u.Auth.Stop, AuthTagName(u.Auth.StopTag))
		}
		v.Unparsed = hex.EncodeToString(u.Auth.Rest)
	}
	return v
}

// StatusName 短状态应答名称
func StatusName(ccrc byte) string {
	switch ccrc {
	case StatusMarkerACK:
		return "Positive Completion"
	case StatusMarkerError:
		return "Negative Completion"
	default:
		return fmt.Sprintf("Unknown status 0x%02x", ccrc)
	}
}

// View 构造解析结果展示结构
func (p *Parser) View(d *Dissection) DissectionView {
	v := DissectionView{Transport: d.Transport.String(), Consumed: d.Consumed, NeedMore: d.NeedMore, Declined: d.Declined}
	if f := d.Serial; f != nil {
		sv := &SerialView{Size: f.Size, Stuffed: f.Stuffed, Trailing: hex.EncodeToString(f.Trailing)}
		if f.IsHandshake() {
			sv.Handshake = SerialCharName(f.Handshake)
		} else {
			sv.CRC = fmt.Sprintf("0x%04X", f.CRC)
			uv := NewUnitView(p.reg, f.Unit)
			sv.Unit = &uv
		}
		v.Serial = sv
	}
	for _, u := range d.Units {
		v.Units = append(v.Units, NewUnitView(p.reg, u))
	}
	return v
}

// FrameView 流式解码输出的一帧
type FrameView struct {
	Transport string    `json:"transport" yaml:"transport"`
	Handshake string    `json:"handshake,omitempty" yaml:"handshake,omitempty"`
	CRC       string    `json:"crc,omitempty" yaml:"crc,omitempty"`
	Raw       string    `json:"raw" yaml:"raw"`
	Unit      *UnitView `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// NewFrameView 由解码帧构造展示结构
func NewFrameView(reg *Registry, fr *Frame) FrameView {
	v := FrameView{Transport: fr.Transport.String(), Raw: hex.EncodeToString(fr.Raw)}
	if fr.Unit == nil {
		v.Handshake = SerialCharName(fr.Handshake)
		return v
	}
	if fr.Transport == TransportSerial {
		v.CRC = fmt.Sprintf("0x%04X", fr.CRC)
	}
	uv := NewUnitView(reg, fr.Unit)
	v.Unit = &uv
	return v
}
