package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taoyao-code/zvt-tap/internal/events"
)

const (
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 4 * 1024
	wsSendBuffer   = 256
)

// WSHandler 单元实时推送
type WSHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(hub *events.Hub, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 仅只读推送，鉴权由 API Key 中间件完成
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// StreamUnits 推送解析出的单元
// @Summary 实时单元推送（WebSocket）
// @Description 每条消息为 {"type":"unit","data":{...}}；conn_id 为空时推送全部连接
// @Tags ZVT
// @Security ApiKeyAuth
// @Param conn_id query string false "只推送该连接"
// @Router /api/v1/ws/units [get]
func (h *WSHandler) StreamUnits(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	sub := h.hub.Subscribe(c.Query("conn_id"), wsSendBuffer)
	h.logger.Info("websocket subscriber connected",
		zap.Uint64("subscriber", sub.ID),
		zap.String("conn_id", sub.ConnID),
		zap.String("remote", c.ClientIP()),
	)

	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

// readPump 只处理控制帧；对端关闭或超时后取消订阅
func (h *WSHandler) readPump(conn *websocket.Conn, sub *events.Subscriber) {
	defer func() {
		h.hub.Unsubscribe(sub)
		_ = conn.Close()
		h.logger.Info("websocket subscriber disconnected",
			zap.Uint64("subscriber", sub.ID),
			zap.Int64("dropped", sub.Dropped()),
		)
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Uint64("subscriber", sub.ID), zap.Error(err))
			}
			return
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *events.Subscriber) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Stats 订阅者数量
// @Summary 实时推送订阅者数量
// @Tags ZVT
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/ws/stats [get]
func (h *WSHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"subscribers": h.hub.Count()})
}
