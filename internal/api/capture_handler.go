package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/zvt-tap/internal/storage"
	"github.com/taoyao-code/zvt-tap/internal/storage/models"
)

// CaptureHandler 抓包记录查询
type CaptureHandler struct {
	reader storage.CaptureReader
	logger *zap.Logger
}

// NewCaptureHandler reader 为 nil 时（未配置数据库）所有查询返回 503
func NewCaptureHandler(reader storage.CaptureReader, logger *zap.Logger) *CaptureHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureHandler{reader: reader, logger: logger}
}

// CaptureView 抓包记录的 API 表示
type CaptureView struct {
	ID          int64           `json:"id"`
	ConnID      string          `json:"conn_id"`
	RemoteAddr  string          `json:"remote_addr"`
	Transport   string          `json:"transport"`
	Control     string          `json:"control,omitempty"`
	Name        string          `json:"name"`
	Direction   string          `json:"direction"`
	StatusCCRC  *int16          `json:"status_ccrc,omitempty"`
	StatusAPRC  *int16          `json:"status_aprc,omitempty"`
	LengthField int32           `json:"length_field"`
	LengthWidth int16           `json:"length_width"`
	Size        int32           `json:"size"`
	Payload     string          `json:"payload,omitempty"`
	Fields      json.RawMessage `json:"fields,omitempty"`
	FieldsStop  string          `json:"fields_stop,omitempty"`
	CRC         string          `json:"crc,omitempty"`
	RawHex      string          `json:"raw_hex,omitempty"`
	CapturedAt  time.Time       `json:"captured_at"`
}

// NewCaptureView 转换为 API 表示
func NewCaptureView(u models.CapturedUnit) CaptureView {
	v := CaptureView{
		ID:          u.ID,
		ConnID:      u.ConnID,
		RemoteAddr:  u.RemoteAddr,
		Transport:   u.Transport,
		Name:        u.Name,
		Direction:   u.Direction,
		StatusCCRC:  u.StatusCCRC,
		StatusAPRC:  u.StatusAPRC,
		LengthField: u.LengthField,
		LengthWidth: u.LengthWidth,
		Size:        u.Size,
		CapturedAt:  u.CapturedAt,
	}
	if u.Control != nil {
		v.Control = fmt.Sprintf("0x%04X", *u.Control)
	}
	if len(u.Payload) > 0 {
		v.Payload = fmt.Sprintf("%x", u.Payload)
	}
	if len(u.Fields) > 0 {
		v.Fields = json.RawMessage(u.Fields)
	}
	if u.FieldsStop != nil {
		v.FieldsStop = *u.FieldsStop
	}
	if u.CRC != nil {
		v.CRC = fmt.Sprintf("0x%04X", *u.CRC)
	}
	if u.RawHex != nil {
		v.RawHex = *u.RawHex
	}
	return v
}

// ParseControl 解析 "0x0601"、"0601" 形式的控制字段
func ParseControl(s string) (int32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid control %q", s)
	}
	return int32(v), nil
}

func parseTimeParam(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: want RFC3339", key)
	}
	return t, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// ParseCaptureFilter 从查询参数构造过滤条件
func ParseCaptureFilter(c *gin.Context) (storage.CaptureFilter, error) {
	f := storage.CaptureFilter{
		ConnID:    c.Query("conn_id"),
		Direction: c.Query("direction"),
		Limit:     queryInt(c, "limit", 100),
		Offset:    queryInt(c, "offset", 0),
	}
	if v := c.Query("control"); v != "" {
		ctrl, err := ParseControl(v)
		if err != nil {
			return f, err
		}
		f.Control = &ctrl
	}
	switch f.Direction {
	case "", "ecr_to_pt", "pt_to_ecr", "unknown":
	default:
		return f, fmt.Errorf("invalid direction %q", f.Direction)
	}
	var err error
	if f.Since, err = parseTimeParam(c, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTimeParam(c, "until"); err != nil {
		return f, err
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, nil
}

func (h *CaptureHandler) available(c *gin.Context) bool {
	if h.reader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "capture storage not configured"})
		return false
	}
	return true
}

// ListCaptures 分页查询抓包记录
// @Summary 查询抓包记录
// @Description 按连接、控制字段、方向、时间范围过滤，按抓包时间倒序
// @Tags 抓包
// @Produce json
// @Security ApiKeyAuth
// @Param conn_id query string false "连接ID"
// @Param control query string false "控制字段，如 0x0601"
// @Param direction query string false "ecr_to_pt|pt_to_ecr|unknown"
// @Param since query string false "起始时间 RFC3339"
// @Param until query string false "截止时间 RFC3339"
// @Param limit query int false "每页数量(默认100)"
// @Param offset query int false "偏移量(默认0)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/captures [get]
func (h *CaptureHandler) ListCaptures(c *gin.Context) {
	if !h.available(c) {
		return
	}
	f, err := ParseCaptureFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.reader.ListUnits(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list captures failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]CaptureView, 0, len(list))
	for _, u := range list {
		out = append(out, NewCaptureView(u))
	}
	c.JSON(http.StatusOK, gin.H{"captures": out, "count": len(out)})
}

// GetCapture 查询单条抓包记录
// @Summary 查询单条抓包记录
// @Tags 抓包
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "记录ID"
// @Success 200 {object} CaptureView
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/captures/{id} [get]
func (h *CaptureHandler) GetCapture(c *gin.Context) {
	if !h.available(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	u, err := h.reader.GetUnit(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "capture not found"})
		return
	}
	if err != nil {
		h.logger.Error("get capture failed", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, NewCaptureView(*u))
}

// CaptureStats 按控制字段统计
// @Summary 抓包统计
// @Description 按控制字段与方向聚合单元数量
// @Tags 抓包
// @Produce json
// @Security ApiKeyAuth
// @Param since query string false "起始时间 RFC3339，默认最近24小时"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/captures/stats [get]
func (h *CaptureHandler) CaptureStats(c *gin.Context) {
	if !h.available(c) {
		return
	}
	since, err := parseTimeParam(c, "since")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	counts, err := h.reader.CountByControl(c.Request.Context(), since)
	if err != nil {
		h.logger.Error("capture stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var total int64
	for _, cc := range counts {
		total += cc.Total
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "total": total, "controls": counts})
}

// ListConnections 最近有抓包的连接
// @Summary 最近活动连接
// @Tags 抓包
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "数量(默认100)"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/connections [get]
func (h *CaptureHandler) ListConnections(c *gin.Context) {
	if !h.available(c) {
		return
	}
	ids, err := h.reader.ListConnections(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		h.logger.Error("list connections failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": ids, "count": len(ids)})
}
