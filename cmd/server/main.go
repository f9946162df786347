package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jelani-tech/minibus-booking-backend/internal/app"
	"github.com/jelani-tech/minibus-booking-backend/internal/config"
	"github.com/jelani-tech/minibus-booking-backend/internal/gateway"
	"github.com/jelani-tech/minibus-booking-backend/internal/handler"
	internalRedis "github.com/jelani-tech/minibus-booking-backend/internal/redis"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository/postgres"
	"github.com/jelani-tech/minibus-booking-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic goes first so the database and redis clients are instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize New Relic")
		} else {
			logger.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	publisher, err := app.NewPublisher(cfg.AMQP, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create event publisher")
	}
	defer publisher.Close()

	server := wireServer(db, redisClient, publisher, nrApp, cfg, logger)

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	publisher message.Publisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *logrus.Logger,
) *http.Server {
	// Redis stores.
	cacheStore := internalRedis.NewCacheStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient, cfg.Gateway.LockTTL)
	idempotencyStore := internalRedis.NewIdempotencyStore(redisClient)

	// Repositories.
	repos := postgres.Repositories(db)
	transactor := postgres.NewTransactor(db)
	catalog := postgres.NewTripCatalog(db)

	// Payment providers, one breaker each.
	registry := gateway.NewProviderRegistry(cfg.Gateway, cfg.WebhookURL())

	// Services.
	notificationService := service.NewNotificationService(publisher, logger)
	tripService := service.NewTripService(repos.Trips, catalog, cacheStore, logger)
	bookingService := service.NewBookingService(repos, transactor, cacheStore, notificationService, logger)
	paymentService := service.NewPaymentService(repos, transactor, registry, lockStore, notificationService, logger)
	receiptService := service.NewReceiptService(repos)

	router := app.NewRouter(app.RouterDeps{
		TripHandler:      handler.NewTripHandler(tripService),
		BookingHandler:   handler.NewBookingHandler(bookingService, receiptService),
		PaymentHandler:   handler.NewPaymentHandler(paymentService, logger),
		IdempotencyStore: idempotencyStore,
		NewRelicApp:      nrApp,
		Logger:           logger,
		AuthSecret:       []byte(cfg.Auth.SecretKey),
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
