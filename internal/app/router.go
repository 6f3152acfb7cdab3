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
	BookingHandler   *handler.BookingHandler
	WebhookHandler   *handler.WebhookHandler
	AmbulanceHandler *handler.AmbulanceHandler
	RedisClient      *redis.Client // nil disables idempotency keys
	NewRelicApp      *newrelic.Application
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

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Emergency booking routes.
		bookings := v1.Group("/emergency-bookings")
		if deps.RedisClient != nil {
			bookings.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
		}
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("", deps.BookingHandler.GetAll)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.PUT("/:id/status", deps.BookingHandler.UpdateStatus)
		}

		// Driver reply routes.
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/twilio/sms", deps.WebhookHandler.SMSReply)
			webhooks.POST("/twilio/status", deps.WebhookHandler.DeliveryStatus)
			webhooks.POST("/driver-reply", deps.WebhookHandler.DriverReply)
		}

		// Ambulance routes.
		ambulances := v1.Group("/ambulances")
		{
			ambulances.POST("/register", deps.AmbulanceHandler.Register)
			ambulances.GET("", deps.AmbulanceHandler.GetAll)
			ambulances.PUT("/:id/device-token", deps.AmbulanceHandler.UpdateDeviceToken)
			ambulances.POST("/:id/location", deps.AmbulanceHandler.UpdateLocation)
			ambulances.POST("/:id/offline", deps.AmbulanceHandler.SetOffline)
		}
	}

	return router
}
