package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
)

// 即时解析结果，对应 api_dissect_total 的 result 标签
const (
	DissectOK         = "ok"
	DissectNeedMore   = "need_more"
	DissectDeclined   = "declined"
	DissectBadRequest = "bad_request"
)

// DissectHandler 即时解析与指令表查询
type DissectHandler struct {
	reg       *zvt.Registry
	opts      zvt.Options
	maxHexLen int
	onResult  func(result string)
	logger    *zap.Logger
}

// NewDissectHandler maxHexLen<=0 表示不限制
func NewDissectHandler(reg *zvt.Registry, opts zvt.Options, maxHexLen int, logger *zap.Logger) *DissectHandler {
	if reg == nil {
		reg = zvt.DefaultRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DissectHandler{reg: reg, opts: opts, maxHexLen: maxHexLen, logger: logger}
}

// SetResultCallback 解析结果回调（用于指标）
func (h *DissectHandler) SetResultCallback(fn func(result string)) { h.onResult = fn }

func (h *DissectHandler) report(result string) {
	if h.onResult != nil {
		h.onResult(result)
	}
}

// DissectRequest 即时解析请求
type DissectRequest struct {
	Hex               string `json:"hex" binding:"required" example:"060f00"`
	Transport         string `json:"transport" example:"auto"` // auto|stream|serial
	StrictMinLength   *bool  `json:"strict_min_length,omitempty"`
	StatusLengthField *bool  `json:"status_length_field,omitempty"`
}

// DissectResponse 即时解析结果
// transport=auto 时按无上下文的单段数据判定传输形式，Dissection 为首帧判定结果
type DissectResponse struct {
	Transport  string              `json:"transport,omitempty"`
	Dissection *zvt.DissectionView `json:"dissection,omitempty"`
	Frames     []zvt.FrameView     `json:"frames"`
	Consumed   int                 `json:"consumed"`
	Pending    int                 `json:"pending"`
	NeedMore   bool                `json:"need_more"`
	Declined   bool                `json:"declined,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// ParseTransport 将请求中的传输形式映射为解码模式
func ParseTransport(s string) (zvt.Transport, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return zvt.TransportNone, nil
	case "stream", "tcp":
		return zvt.TransportStream, nil
	case "serial":
		return zvt.TransportSerial, nil
	default:
		return zvt.TransportNone, errors.New("transport must be auto, stream or serial")
	}
}

// Dissect 解析一段十六进制字节流
// @Summary 即时解析 ZVT 字节流
// @Description auto 按单段数据判定传输形式（单字节握手、串口帧或 TCP 单元）；stream/serial 按固定传输形式解码。末尾不完整的单元以 pending 字节数返回
// @Tags ZVT
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body DissectRequest true "十六进制输入"
// @Success 200 {object} DissectResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/dissect [post]
func (h *DissectHandler) Dissect(c *gin.Context) {
	var req DissectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.report(DissectBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	if h.maxHexLen > 0 && len(req.Hex) > h.maxHexLen {
		h.report(DissectBadRequest)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "hex too long", "max": h.maxHexLen})
		return
	}
	mode, err := ParseTransport(req.Transport)
	if err != nil {
		h.report(DissectBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw, err := zvt.DecodeHex(req.Hex)
	if err != nil || len(raw) == 0 {
		h.report(DissectBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hex"})
		return
	}

	opts := h.opts
	if req.StrictMinLength != nil {
		opts.StrictMinLength = *req.StrictMinLength
	}
	if req.StatusLengthField != nil {
		opts.StatusLengthField = *req.StatusLengthField
	}

	resp := h.run(zvt.NewParser(h.reg, opts), mode, raw)
	switch {
	case resp.Declined:
		h.report(DissectDeclined)
	case resp.NeedMore:
		h.report(DissectNeedMore)
	default:
		h.report(DissectOK)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DissectHandler) run(p *zvt.Parser, mode zvt.Transport, raw []byte) DissectResponse {
	if mode == zvt.TransportNone {
		return h.runChunk(p, raw)
	}
	d := zvt.NewStreamDecoder(p, 0)
	d.SetMode(mode)
	frames, err := d.Feed(raw)

	resp := DissectResponse{Frames: make([]zvt.FrameView, 0, len(frames))}
	for _, fr := range frames {
		resp.Frames = append(resp.Frames, zvt.NewFrameView(h.reg, fr))
		resp.Consumed += len(fr.Raw)
	}
	if err != nil {
		resp.Declined = true
		resp.Error = err.Error()
		return resp
	}
	resp.Pending = d.Pending()
	resp.NeedMore = resp.Pending > 0
	return resp
}

func (h *DissectHandler) runChunk(p *zvt.Parser, raw []byte) DissectResponse {
	res, err := p.DissectChunk(raw)
	resp := DissectResponse{Frames: []zvt.FrameView{}}
	if res != nil {
		dv := p.View(res.Dissection)
		resp.Transport = dv.Transport
		resp.Dissection = &dv
		for _, fr := range res.Frames {
			resp.Frames = append(resp.Frames, zvt.NewFrameView(h.reg, fr))
		}
		resp.Consumed = res.Consumed
		resp.Pending = res.Pending
		resp.NeedMore = res.NeedMore
	}
	if err != nil {
		resp.Declined = true
		resp.Error = err.Error()
	}
	return resp
}

// CommandView 指令表条目
type CommandView struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	MinLen    int    `json:"min_len"`
	Direction string `json:"direction"`
	Payload   string `json:"payload"`
}

// ListCommands 查询指令表
// @Summary 查询已知控制字段
// @Tags ZVT
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/commands [get]
func (h *DissectHandler) ListCommands(c *gin.Context) {
	descs := h.reg.Descriptors()
	out := make([]CommandView, 0, len(descs))
	for _, d := range descs {
		out = append(out, CommandView{
			Code:      d.Code.String(),
			Name:      d.Name,
			MinLen:    d.MinLen,
			Direction: d.Direction.String(),
			Payload:   d.Payload.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"commands": out, "total": len(out)})
}
