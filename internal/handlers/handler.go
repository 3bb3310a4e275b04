package handlers

import (
	"pitfan/internal/logger"
	"pitfan/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
//
// The root-level GET routes are the smart-thermostat integration surface:
// their wire format is byte-exact and they carry no auth (the external
// bridge cannot send credentials). Everything an operator uses lives under
// /auth and /api/v1.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Integration surface
	h.registerThermostatRoutes(router)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live telemetry over WebSocket — same port
	router.GET("/ws", h.wsConnect)

	// Anything else is refused at the transport level, no body.
	router.NoRoute(h.refuse)

	return router
}

func (h *Handler) registerThermostatRoutes(r *gin.Engine) {
	r.GET("/status", h.status)
	r.GET("/targetTemperature", h.setTargetTemperature)
	r.GET("/targetHeatingCoolingState", h.setTargetMode)
	// Spelling is part of the deployed contract; bridges in the field point
	// at this exact path.
	r.GET("/currentTempreture", h.overrideCurrentTemperature)
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		api.GET("/events", h.getEvents)
		api.GET("/telemetry", h.getTelemetry)
	}
}
