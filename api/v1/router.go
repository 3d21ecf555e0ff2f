package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/healthwatch/core"
)

// Router sets up the API v1 routes
type Router struct {
	engine          *gin.Engine
	incidentHandler *IncidentHandler
	statusHandler   *StatusHandler
}

// NewRouter creates a new API v1 router
func NewRouter(app *core.App) *Router {
	engine := gin.New()

	// Configure middleware
	engine.Use(LoggingMiddleware())
	engine.Use(ErrorHandlingMiddleware())
	engine.Use(gin.Recovery())
	engine.Use(CORSMiddleware())
	engine.Use(RequestIDMiddleware())

	router := &Router{
		engine:          engine,
		incidentHandler: NewIncidentHandler(app),
		statusHandler:   NewStatusHandler(app),
	}

	router.setupRoutes()

	return router
}

// GetEngine returns the gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	v1 := r.engine.Group("/v1")

	// Incident routes
	incidents := v1.Group("/incidents")
	{
		incidents.GET("", r.incidentHandler.ListIncidents)
		incidents.GET("/:id", r.incidentHandler.GetIncident)
		incidents.GET("/:id/timeline", r.incidentHandler.GetTimeline)
		incidents.POST("/:id/acknowledge", r.incidentHandler.AcknowledgeIncident)
	}

	// Status routes
	v1.GET("/uptime", r.statusHandler.GetUptime)
	v1.GET("/checks", r.statusHandler.ListChecks)
	v1.GET("/storage/info", r.statusHandler.GetStorageInfo)

	v1.GET("/version", r.handleVersion)

	// Daemon liveness, outside the versioned group so external probes
	// can hit a stable path
	r.engine.GET("/health", r.handleHealth)
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func (r *Router) handleVersion(c *gin.Context) {
	SendSuccess(c, KindVersion, map[string]interface{}{
		"version":    core.Version,
		"apiVersion": APIVersion,
	}, nil)
}
