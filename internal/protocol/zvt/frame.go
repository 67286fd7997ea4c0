package zvt

import (
	"errors"
	"fmt"
)

// 串口传输层特殊字符
const (
	STX byte = 0x02
	ETX byte = 0x03
	ACK byte = 0x06
	DLE byte = 0x10
	NAK byte = 0x15
)

// DefaultTCPPort ZVT 规范建议的 TCP 端口（未在 IANA 注册，默认不启用）
const DefaultTCPPort = 20007

// MinUnitLen APDU 最小长度：2 字节控制字段 + 1 字节长度
const MinUnitLen = 3

// lenEscape 长度字段取值 0xFF 时，后跟 2 字节大端扩展长度
const lenEscape = 0xFF

// MaxUnitLen 单个 APDU 的最大线上长度（扩展长度 + 最大负载）
const MaxUnitLen = 2 + 3 + 0xFFFF

// 短状态应答的标记字节（CCRC）
const (
	StatusMarkerACK   byte = 0x80
	StatusMarkerError byte = 0x84
)

var (
	// ErrNeedMore 数据不足，调用方需在同一偏移处补充更多字节后重试
	ErrNeedMore = errors.New("zvt: need more bytes")
	// ErrNotZVT 数据不是可识别的 ZVT 单元
	ErrNotZVT = errors.New("zvt: not a zvt unit")
)

// ControlCode APDU 控制字段（大端 16 位）
type ControlCode uint16

// CtrlNone 规范未定义 0，用作短状态应答的占位
const CtrlNone ControlCode = 0x0000

const (
	CtrlStatus         ControlCode = 0x040F
	CtrlIntStatus      ControlCode = 0x04FF
	CtrlRegistration   ControlCode = 0x0600
	CtrlAuthorisation  ControlCode = 0x0601
	CtrlCompletion     ControlCode = 0x060F
	CtrlAbort          ControlCode = 0x061E
	CtrlEndOfDay       ControlCode = 0x0650
	CtrlDiag           ControlCode = 0x0670
	CtrlInit           ControlCode = 0x0693
	CtrlPrintLine      ControlCode = 0x06D1
	CtrlPrintTextBlock ControlCode = 0x06D3
)

func (c ControlCode) String() string { return fmt.Sprintf("0x%04X", uint16(c)) }

// Direction 应用层报文方向（与传输层地址无关）
type Direction uint8

const (
	DirectionUnknown Direction = iota
	DirectionECRToPT
	DirectionPTToECR
)

// 两端的固定符号地址
const (
	AddrECR = "ECR"
	AddrPT  = "PT"
)

func (d Direction) String() string {
	switch d {
	case DirectionECRToPT:
		return "ecr_to_pt"
	case DirectionPTToECR:
		return "pt_to_ecr"
	default:
		return "unknown"
	}
}

// Endpoints 返回方向对应的源/目的地址；未知方向返回空串
func (d Direction) Endpoints() (src, dst string) {
	switch d {
	case DirectionECRToPT:
		return AddrECR, AddrPT
	case DirectionPTToECR:
		return AddrPT, AddrECR
	default:
		return "", ""
	}
}

// SerialCharName 串口控制字符名称
func SerialCharName(b byte) string {
	switch b {
	case STX:
		return "Start of text (STX)"
	case ETX:
		return "End of text (ETX)"
	case ACK:
		return "Acknowledged (ACK)"
	case DLE:
		return "Data line escape (DLE)"
	case NAK:
		return "Not acknowledged (NAK)"
	default:
		return fmt.Sprintf("Unknown 0x%02x", b)
	}
}

func isStatusMarker(b byte) bool { return b == StatusMarkerACK || b == StatusMarkerError }

func isHandshake(b byte) bool { return b == ACK || b == NAK }
