package events

import (
	"fmt"
	"time"

	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
)

// UnitEvent 一条解析结果的对外事件（NATS 与 WebSocket 共用）
type UnitEvent struct {
	ConnID     string        `json:"conn_id"`
	RemoteAddr string        `json:"remote_addr"`
	Transport  string        `json:"transport"`
	Handshake  string        `json:"handshake,omitempty"`
	CRC        string        `json:"crc,omitempty"`
	Unit       *zvt.UnitView `json:"unit,omitempty"`
	At         time.Time     `json:"at"`
}

// Direction 事件方向；握手与缺少单元时为 unknown
func (e *UnitEvent) Direction() string {
	if e.Unit == nil {
		return zvt.DirectionUnknown.String()
	}
	return e.Unit.Direction
}

// NewUnitEvent 由解码帧构造事件
func NewUnitEvent(reg *zvt.Registry, connID, remote string, fr *zvt.Frame, at time.Time) *UnitEvent {
	ev := &UnitEvent{
		ConnID:     connID,
		RemoteAddr: remote,
		Transport:  fr.Transport.String(),
		At:         at.UTC(),
	}
	if fr.Unit == nil {
		ev.Handshake = zvt.SerialCharName(fr.Handshake)
		return ev
	}
	v := zvt.NewUnitView(reg, fr.Unit)
	ev.Unit = &v
	if fr.Transport == zvt.TransportSerial {
		ev.CRC = fmt.Sprintf("0x%04X", fr.CRC)
	}
	return ev
}
