package zvt

import "errors"

// StreamResult 一次流式解析的结果
// NeedMore 时调用方应缓存 buf[Consumed:]，拼接下一个分段后从头重新调用；
// Declined 时 buf[Consumed:] 不属于 ZVT，可交由其他解释器处理
type StreamResult struct {
	Units    []*Unit
	Consumed int
	NeedMore bool
	Declined bool
}

// DissectStream 在已确认的 TCP/IP 字节流上循环解析 APDU
// 不再判断首个控制字段：续传缓冲可能以未登记的控制字段开头，首包判定由 Sniff 负责
func (p *Parser) DissectStream(buf []byte) StreamResult {
	var res StreamResult
	if len(buf) < MinUnitLen {
		res.NeedMore = true
		return res
	}

	for res.Consumed < len(buf) {
		u, err := p.ParseUnit(buf, res.Consumed)
		switch {
		case errors.Is(err, ErrNeedMore):
			res.NeedMore = true
			return res
		case err != nil:
			res.Declined = true
			return res
		}
		res.Units = append(res.Units, u)
		res.Consumed += u.Size
	}
	return res
}
