package zvt

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// BuildUnit 构造一个 APDU；负载不少于 255 字节时使用 0xFF 扩展长度
func BuildUnit(ctrl ControlCode, payload []byte) []byte {
	n := len(payload)
	buf := make([]byte, 0, 5+n)
	buf = binary.BigEndian.AppendUint16(buf, uint16(ctrl))
	if n < lenEscape {
		buf = append(buf, byte(n))
	} else {
		buf = append(buf, lenEscape)
		buf = binary.BigEndian.AppendUint16(buf, uint16(n))
	}
	return append(buf, payload...)
}

// BuildStatus 构造不带长度字段的短状态应答
func BuildStatus(ccrc, aprc byte) []byte { return []byte{ccrc, aprc} }

// BuildSerial 以 DLE STX / DLE ETX 包装 APDU 并追加小端 CRC
func BuildSerial(apdu []byte, crc uint16) []byte {
	body := Stuff(apdu)
	buf := make([]byte, 0, len(body)+6)
	buf = append(buf, DLE, STX)
	buf = append(buf, body...)
	buf = append(buf, DLE, ETX)
	return binary.LittleEndian.AppendUint16(buf, crc)
}

var hexSeparators = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "", ":", "", "-", "", "0x", "", "0X", "")

// DecodeHex 解析十六进制文本，忽略空白、冒号、连字符与 0x 前缀
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(hexSeparators.Replace(s))
}
