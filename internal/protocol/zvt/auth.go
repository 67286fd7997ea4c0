package zvt

import (
	"fmt"
	"iter"
)

// 授权 APDU 中的数据项标签
const (
	AuthTagTimeout      byte = 0x01
	AuthTagMaxStatInfo  byte = 0x02
	AuthTagAmount       byte = 0x04
	AuthTagPumpNr       byte = 0x05
	AuthTagTLVContainer byte = 0x06
	AuthTagExpDate      byte = 0x0E
	AuthTagPaymentType  byte = 0x19
	AuthTagCardNum      byte = 0x22
	AuthTagT2Data       byte = 0x23
	AuthTagT3Data       byte = 0x24
	AuthTagT1Data       byte = 0x2D
	AuthTagCVV          byte = 0x3A
	AuthTagAddData      byte = 0x3C
	AuthTagCC           byte = 0x49
)

// varWidth 标记长度不定（线上没有长度字段）的标签
const varWidth = -1

type authTagInfo struct {
	name  string
	width int
}

// authTags 标签 -> 名称与隐含宽度；宽度仅由标签决定
var authTags = map[byte]authTagInfo{
	AuthTagTimeout:      {"Timeout", 1},
	AuthTagMaxStatInfo:  {"max. status info", 1},
	AuthTagAmount:       {"Amount", 6},
	AuthTagPumpNr:       {"Pump number", 1},
	AuthTagTLVContainer: {"TLV container", varWidth},
	AuthTagExpDate:      {"Expiry date", 2},
	AuthTagPaymentType:  {"Payment type", 1},
	AuthTagCardNum:      {"Card number", varWidth},
	AuthTagT2Data:       {"Track 2 data", varWidth},
	AuthTagT3Data:       {"Track 3 data", varWidth},
	AuthTagT1Data:       {"Track 1 data", varWidth},
	AuthTagCVV:          {"CVV / CVC", 2},
	AuthTagAddData:      {"Additional data", varWidth},
	AuthTagCC:           {"Currency code (CC)", 2},
}

// AuthTagName 标签名称
func AuthTagName(tag byte) string {
	if info, ok := authTags[tag]; ok {
		return info.name
	}
	return fmt.Sprintf("Unknown 0x%02x", tag)
}

// TaggedField 一个 (标签, 隐含长度, 值) 数据项
type TaggedField struct {
	Tag    byte
	Name   string
	Offset int    // 标签相对负载起点的偏移
	Value  []byte // 负载视图，不复制
}

// StopReason 数据项遍历结束原因
type StopReason uint8

const (
	StopNone      StopReason = iota // 仍可继续
	StopEnd                         // 正常走到负载末尾
	StopVariable                    // 遇到长度不定的标签
	StopUnknown                     // 遇到未知标签
	StopTruncated                   // 定长值越过负载末尾
)

func (s StopReason) String() string {
	switch s {
	case StopEnd:
		return "end"
	case StopVariable:
		return "variable_length_tag"
	case StopUnknown:
		return "unknown_tag"
	case StopTruncated:
		return "truncated"
	default:
		return "none"
	}
}

// AuthReader 惰性、有限、不可重启的数据项序列
type AuthReader struct {
	data    []byte
	off     int
	stop    StopReason
	stopTag byte
}

// NewAuthReader 从偏移 0 开始遍历授权负载
func NewAuthReader(payload []byte) *AuthReader {
	return &AuthReader{data: payload}
}

// Next 返回下一个数据项；遍历结束后始终返回 false
func (r *AuthReader) Next() (TaggedField, bool) {
	if r.stop != StopNone {
		return TaggedField{}, false
	}
	if r.off >= len(r.data) {
		r.stop = StopEnd
		return TaggedField{}, false
	}

	tag := r.data[r.off]
	info, ok := authTags[tag]
	switch {
	case !ok:
		// 没有长度字段，无法安全跳过未知数据
		r.halt(StopUnknown, tag)
		return TaggedField{}, false
	case info.width == varWidth:
		r.halt(StopVariable, tag)
		return TaggedField{}, false
	}

	start := r.off + 1
	end := start + info.width
	if end > len(r.data) {
		r.halt(StopTruncated, tag)
		return TaggedField{}, false
	}
	f := TaggedField{Tag: tag, Name: info.name, Offset: r.off, Value: r.data[start:end]}
	r.off = end
	return f, true
}

func (r *AuthReader) halt(reason StopReason, tag byte) {
	r.stop = reason
	r.stopTag = tag
}

// All 以 iter.Seq 形式消费剩余数据项
func (r *AuthReader) All() iter.Seq[TaggedField] {
	return func(yield func(TaggedField) bool) {
		for {
			f, ok := r.Next()
			if !ok || !yield(f) {
				return
			}
		}
	}
}

// Stop 结束原因；未结束时为 StopNone
func (r *AuthReader) Stop() StopReason { return r.stop }

// StopTag 导致提前结束的标签
func (r *AuthReader) StopTag() byte { return r.stopTag }

// Rest 未解析的剩余负载（从停止处的标签开始）
func (r *AuthReader) Rest() []byte { return r.data[r.off:] }

// AuthPayload 授权负载解码结果
type AuthPayload struct {
	Fields  []TaggedField
	Stop    StopReason
	StopTag byte
	Rest    []byte
}

// DecodeAuthorisation 一次性遍历授权负载
func DecodeAuthorisation(payload []byte) *AuthPayload {
	r := NewAuthReader(payload)
	ap := &AuthPayload{}
	for f := range r.All() {
		ap.Fields = append(ap.Fields, f)
	}
	ap.Stop = r.Stop()
	ap.StopTag = r.StopTag()
	ap.Rest = r.Rest()
	return ap
}

// Field 查找首个指定标签的数据项
func (ap *AuthPayload) Field(tag byte) (TaggedField, bool) {
	for _, f := range ap.Fields {
		if f.Tag == tag {
			return f, true
		}
	}
	return TaggedField{}, false
}
