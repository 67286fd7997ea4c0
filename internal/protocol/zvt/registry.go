package zvt

import (
	"fmt"
	"sort"
	"sync"
)

// PayloadKind 负载解析方式（封闭集合，按控制字段显式匹配）
type PayloadKind uint8

const (
	PayloadOpaque PayloadKind = iota
	PayloadAuthorisation
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadAuthorisation:
		return "authorisation"
	default:
		return "opaque"
	}
}

// CommandDescriptor 单个控制字段的静态描述
// MinLen 仅在 Options.StrictMinLength 开启时参与校验
type CommandDescriptor struct {
	Code      ControlCode
	Name      string
	MinLen    int
	Direction Direction
	Payload   PayloadKind
}

// Registry 控制字段查找表，构建后只读，可并发使用
type Registry struct {
	byCode map[ControlCode]CommandDescriptor
}

// NewRegistry 由描述列表构建查找表；重复的控制字段返回错误
func NewRegistry(descs ...CommandDescriptor) (*Registry, error) {
	r := &Registry{byCode: make(map[ControlCode]CommandDescriptor, len(descs))}
	for _, d := range descs {
		if _, dup := r.byCode[d.Code]; dup {
			return nil, fmt.Errorf("zvt: duplicate control code %s", d.Code)
		}
		r.byCode[d.Code] = d
	}
	return r, nil
}

// defaultDescriptors 内置指令表
func defaultDescriptors() []CommandDescriptor {
	return []CommandDescriptor{
		{Code: CtrlStatus, Name: "Status Information", Direction: DirectionPTToECR},
		{Code: CtrlIntStatus, Name: "Intermediate Status Information", Direction: DirectionPTToECR},
		{Code: CtrlRegistration, Name: "Registration", MinLen: 4, Direction: DirectionECRToPT},
		// 授权至少包含 0x04 标签与 6 字节金额
		{Code: CtrlAuthorisation, Name: "Authorisation", MinLen: 7, Direction: DirectionECRToPT, Payload: PayloadAuthorisation},
		{Code: CtrlCompletion, Name: "Completion", Direction: DirectionPTToECR},
		{Code: CtrlAbort, Name: "Abort", Direction: DirectionPTToECR},
		{Code: CtrlEndOfDay, Name: "End Of Day", Direction: DirectionECRToPT},
		{Code: CtrlDiag, Name: "Diagnosis", Direction: DirectionECRToPT},
		{Code: CtrlInit, Name: "Initialisation", Direction: DirectionECRToPT},
		{Code: CtrlPrintLine, Name: "Print Line", Direction: DirectionPTToECR},
		{Code: CtrlPrintTextBlock, Name: "Print Text Block"},
	}
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(defaultDescriptors()...)
	if err != nil {
		panic(err)
	}
	return r
})

// DefaultRegistry 进程级只读默认表（首次调用时构建）
func DefaultRegistry() *Registry { return defaultRegistry() }

// Lookup 按控制字段查找描述
func (r *Registry) Lookup(code ControlCode) (CommandDescriptor, bool) {
	d, ok := r.byCode[code]
	return d, ok
}

// Known 控制字段是否已知
func (r *Registry) Known(code ControlCode) bool {
	_, ok := r.byCode[code]
	return ok
}

// Name 返回控制字段名称，未知时形如 "Unknown 0x6b0"
func (r *Registry) Name(code ControlCode) string {
	if d, ok := r.byCode[code]; ok && d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("Unknown 0x%x", uint16(code))
}

// Descriptors 按控制字段升序返回全部描述
func (r *Registry) Descriptors() []CommandDescriptor {
	out := make([]CommandDescriptor, 0, len(r.byCode))
	for _, d := range r.byCode {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len 表项数量
func (r *Registry) Len() int { return len(r.byCode) }
