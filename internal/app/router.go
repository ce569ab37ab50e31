package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	CourierHandler *handler.CourierHandler
	OrderHandler   *handler.OrderHandler
	EventsHandler  *handler.EventsHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Courier routes.
		couriers := v1.Group("/couriers")
		{
			couriers.POST("/register", deps.CourierHandler.Register)
			couriers.GET("", deps.CourierHandler.GetAll)
			couriers.GET("/available", deps.CourierHandler.ListAvailable)
			couriers.GET("/nearby", deps.CourierHandler.FindNearby)
			couriers.GET("/:id", deps.CourierHandler.GetByID)
			couriers.GET("/:id/events", deps.EventsHandler.CourierEvents)
			couriers.POST("/:id/location", deps.CourierHandler.ReportLocation)
			couriers.GET("/:id/location", deps.CourierHandler.GetLocation)
			couriers.POST("/:id/online", deps.CourierHandler.SetOnline)
			couriers.POST("/:id/deactivate", deps.CourierHandler.Deactivate)
		}

		// Branch routes.
		branches := v1.Group("/branches")
		{
			branches.GET("/:id/couriers", deps.CourierHandler.ListCandidates)
			branches.GET("/:id/events", deps.EventsHandler.BranchEvents)
		}

		// Order routes.
		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.CreateOrder)
			orders.GET("", deps.OrderHandler.GetAll)
			orders.GET("/:id", deps.OrderHandler.GetOrder)
			orders.POST("/:id/assign", deps.OrderHandler.Assign)
			orders.POST("/:id/status", deps.OrderHandler.Transition)
			orders.POST("/:id/cancel", deps.OrderHandler.Cancel)
			orders.GET("/:id/events", deps.EventsHandler.OrderEvents)
		}
	}

	return router
}
