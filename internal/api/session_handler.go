package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/zvt-tap/internal/session"
)

// RecentLister 连接最近单元（Redis 列表）
type RecentLister interface {
	List(ctx context.Context, connID string, n int) ([][]byte, error)
}

// SessionHandler 连接会话查询
type SessionHandler struct {
	sess    session.Manager
	recent  RecentLister
	timeout time.Duration
	logger  *zap.Logger
}

// NewSessionHandler recent 可为 nil
func NewSessionHandler(sess session.Manager, recent RecentLister, timeout time.Duration, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{sess: sess, recent: recent, timeout: timeout, logger: logger}
}

// SessionView 会话及在线状态
type SessionView struct {
	session.Info
	Online bool `json:"online"`
}

// ListSessions 查询全部会话
// @Summary 查询连接会话
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	list, err := h.sess.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	now := time.Now()
	out := make([]SessionView, 0, len(list))
	online := 0
	for i := range list {
		v := SessionView{Info: list[i], Online: list[i].Online(now, h.timeout)}
		if v.Online {
			online++
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "total": len(out), "online": online})
}

// GetSession 查询单个会话
// @Summary 查询单个连接会话
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "连接ID"
// @Success 200 {object} SessionView
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	info, err := h.sess.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, SessionView{Info: *info, Online: info.Online(time.Now(), h.timeout)})
}

// RecentUnits 连接最近解析出的单元
// @Summary 连接最近单元
// @Description 需启用 Redis；最新的在前
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "连接ID"
// @Param limit query int false "数量(默认20)"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/units [get]
func (h *SessionHandler) RecentUnits(c *gin.Context) {
	if h.recent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recent units require redis"})
		return
	}
	connID := c.Param("id")
	docs, err := h.recent.List(c.Request.Context(), connID, queryInt(c, "limit", 20))
	if err != nil {
		h.logger.Error("list recent units failed", zap.String("conn_id", connID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	units := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		units = append(units, json.RawMessage(d))
	}
	c.JSON(http.StatusOK, gin.H{"conn_id": connID, "units": units, "count": len(units)})
}
