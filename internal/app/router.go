package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"github.com/jelani-tech/minibus-booking-backend/internal/handler"
	"github.com/jelani-tech/minibus-booking-backend/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler      *handler.TripHandler
	BookingHandler   *handler.BookingHandler
	PaymentHandler   *handler.PaymentHandler
	IdempotencyStore middleware.ResponseStore
	NewRelicApp      *newrelic.Application
	Logger           logrus.FieldLogger
	AuthSecret       []byte
	AllowedOrigins   []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Trip catalog is public.
		trips := v1.Group("/trips")
		{
			trips.GET("", deps.TripHandler.SearchTrips)
			trips.GET("/:id", deps.TripHandler.GetTrip)
		}

		// Provider callbacks carry no user token and skip the replay cache.
		v1.POST("/payments/webhook", deps.PaymentHandler.Webhook)

		authed := v1.Group("", middleware.Auth(deps.AuthSecret))
		if deps.IdempotencyStore != nil {
			authed.Use(middleware.Idempotency(deps.IdempotencyStore, deps.Logger))
		}

		// Booking routes.
		bookings := authed.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("", deps.BookingHandler.ListBookings)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.DELETE("/:id", deps.BookingHandler.CancelBooking)
			bookings.GET("/:id/receipt", deps.BookingHandler.GetReceipt)
		}

		// Payment routes.
		payments := authed.Group("/payments")
		{
			payments.POST("/initiate", deps.PaymentHandler.InitiatePayment)
			payments.GET("/status/:booking_id", deps.PaymentHandler.GetPaymentStatus)
			payments.POST("/status/:booking_id/refresh", deps.PaymentHandler.RefreshPaymentStatus)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
