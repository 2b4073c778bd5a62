package handlers

import (
	"time"

	"stagetimer/internal/logger"
	"stagetimer/internal/protocol"
	"stagetimer/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// WSConfig is the keep-alive policy for WebSocket connections.
type WSConfig struct {
	PingInterval   time.Duration
	IdleDisconnect time.Duration
}

// DefaultWSConfig mirrors the gorilla examples: ping at 90% of the idle
// window.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		PingInterval:   54 * time.Second,
		IdleDisconnect: 60 * time.Second,
	}
}

// Handler wires the HTTP and WebSocket surfaces to the room service.
type Handler struct {
	services *service.Service
	proto    *protocol.Handler
	ws       WSConfig
	log      *logger.Logger
}

// NewHandler constructs the HTTP handler with dependencies.
func NewHandler(services *service.Service, proto *protocol.Handler, ws WSConfig, log *logger.Logger) *Handler {
	if ws.PingInterval <= 0 || ws.IdleDisconnect <= 0 {
		ws = DefaultWSConfig()
	}
	return &Handler{services: services, proto: proto, ws: ws, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// WebSocket endpoint (HTTP upgrade) — same port
	router.GET("/ws/:room_id", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerRoomRoutes(api)
	}
}

func (h *Handler) registerRoomRoutes(api *gin.RouterGroup) {
	rooms := api.Group("/rooms")
	{
		rooms.POST("", h.createRoom)
		rooms.GET("/:room_id", h.getRoom)
		rooms.DELETE("/:room_id", h.deleteRoom)

		rooms.POST("/:room_id/timers", h.addTimer)
		rooms.GET("/:room_id/timers", h.listTimers)
		rooms.DELETE("/:room_id/timers/:timer_id", h.removeTimer)
		// Body example: {"action":"add_time","data":{"seconds":30}}
		rooms.POST("/:room_id/timers/:timer_id/control", h.controlTimer)

		rooms.POST("/:room_id/messages", h.createMessage)
		rooms.GET("/:room_id/devices", h.listDevices)
	}
}
