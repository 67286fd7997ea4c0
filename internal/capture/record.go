package capture

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
	"github.com/taoyao-code/zvt-tap/internal/storage/models"
)

// Source 抓包来源连接
type Source struct {
	ConnID     string
	RemoteAddr string
}

// FromFrame 将解码帧转换为存储记录；负载与原始字节均复制
func FromFrame(reg *zvt.Registry, src Source, fr *zvt.Frame, at time.Time, keepRaw bool) models.CapturedUnit {
	m := models.CapturedUnit{
		ConnID:     src.ConnID,
		RemoteAddr: src.RemoteAddr,
		Transport:  fr.Transport.String(),
		Direction:  zvt.DirectionUnknown.String(),
		Size:       int32(len(fr.Raw)),
		CapturedAt: at.UTC(),
	}
	if keepRaw && len(fr.Raw) > 0 {
		h := hex.EncodeToString(fr.Raw)
		m.RawHex = &h
	}

	if fr.Unit == nil {
		m.Name = zvt.SerialCharName(fr.Handshake)
		if m.Size == 0 {
			m.Size = 1
		}
		return m
	}

	u := fr.Unit
	view := zvt.NewUnitView(reg, u)
	m.Name = view.Name
	m.Direction = view.Direction
	m.LengthField = int32(u.LengthField)
	m.LengthWidth = int16(u.LengthWidth)
	if m.Size == 0 {
		m.Size = int32(u.Size)
	}
	if len(u.Payload) > 0 {
		m.Payload = append([]byte(nil), u.Payload...)
	}

	if u.IsStatus() {
		ccrc, aprc := int16(u.CCRC), int16(u.APRC)
		m.StatusCCRC, m.StatusAPRC = &ccrc, &aprc
	} else {
		ctrl := int32(u.Control)
		m.Control = &ctrl
	}
	if fr.Transport == zvt.TransportSerial {
		crc := int32(fr.CRC)
		m.CRC = &crc
	}
	if len(view.Fields) > 0 {
		if b, err := json.Marshal(view.Fields); err == nil {
			m.Fields = b
		}
	}
	if view.FieldsStop != "" {
		stop := view.FieldsStop
		m.FieldsStop = &stop
	}
	return m
}
