package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/taoyao-code/zvt-tap/docs"
	"github.com/taoyao-code/zvt-tap/internal/api/middleware"
)

// Handlers 各组处理器；nil 的组不注册
type Handlers struct {
	Dissect *DissectHandler
	Capture *CaptureHandler
	Session *SessionHandler
	WS      *WSHandler
}

// RouteOptions 路由选项
type RouteOptions struct {
	APIKeys []string
	Swagger bool
}

// RegisterRoutes 注册 /api/v1 路由
// @title ZVT Tap API
// @version 1.0
// @description ZVT 支付终端协议旁路解析服务
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func RegisterRoutes(r *gin.Engine, h Handlers, opts RouteOptions, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	if len(opts.APIKeys) > 0 {
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(opts.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}
	v1.Use(middleware.APIKeyAuth(opts.APIKeys, logger))

	endpoints := 0
	if h.Dissect != nil {
		v1.POST("/dissect", h.Dissect.Dissect)
		v1.GET("/commands", h.Dissect.ListCommands)
		endpoints += 2
	}
	if h.Capture != nil {
		v1.GET("/captures", h.Capture.ListCaptures)
		v1.GET("/captures/stats", h.Capture.CaptureStats)
		v1.GET("/captures/:id", h.Capture.GetCapture)
		v1.GET("/connections", h.Capture.ListConnections)
		endpoints += 4
	}
	if h.Session != nil {
		v1.GET("/sessions", h.Session.ListSessions)
		v1.GET("/sessions/:id", h.Session.GetSession)
		v1.GET("/sessions/:id/units", h.Session.RecentUnits)
		endpoints += 3
	}
	if h.WS != nil {
		v1.GET("/ws/units", h.WS.StreamUnits)
		v1.GET("/ws/stats", h.WS.Stats)
		endpoints += 2
	}
	logger.Info("api routes registered", zap.Int("endpoints", endpoints), zap.Bool("swagger", opts.Swagger))
}
