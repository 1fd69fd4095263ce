package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courtly/court-booking-backend/internal/config"
	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/handlers"
	"github.com/courtly/court-booking-backend/internal/middleware"
	"github.com/courtly/court-booking-backend/internal/services"
	"github.com/courtly/court-booking-backend/pkg/jwt"
	"github.com/courtly/court-booking-backend/pkg/mq"
	"github.com/courtly/court-booking-backend/pkg/validator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting court booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	// Middleware logs through the standard logger
	logrus.SetFormatter(logger.Formatter)
	logrus.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Availability cache
	redisClient := services.NewRedisClient(cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("Availability cache enabled")
	}
	slotCache := services.NewSlotCache(redisClient, cfg.Redis.CacheTTL, logger)

	// Notifications
	var notifier services.Notifier = services.NewLogNotifier(logger)
	if cfg.RabbitMQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.WithError(err).Warn("RabbitMQ unavailable, notifications will only be logged")
		} else {
			defer publisher.Close()
			notifier = services.NewBrokerNotifier(publisher)
			logger.WithField("exchange", cfg.RabbitMQ.Exchange).Info("Booking notifications published to RabbitMQ")
		}
	}

	// Card payments
	gateway, err := services.NewPaymentGateway(cfg.Payment, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize payment gateway: %v", err)
	}
	if gateway == nil {
		logger.Warn("No payment gateway configured, card payments are disabled")
	} else {
		logger.WithField("provider", gateway.Name()).Info("Payment gateway initialized")
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	core := services.NewContainer(cfg, db, slotCache, notifier, gateway, logger)

	if err := core.Cron.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	defer core.Cron.Stop()
	logger.Info("Cron service started")

	// Initialize handlers
	bookingValidator := validator.NewBookingValidator()
	bookingHandler := handlers.NewBookingHandler(core.Bookings, bookingValidator, logger)
	availabilityHandler := handlers.NewAvailabilityHandler(core.Availability, bookingValidator, logger)
	walletHandler := handlers.NewWalletHandler(core.Wallet, core.Payments, logger)
	paymentHandler := handlers.NewPaymentHandler(core.Payments, core.Bookings, logger)
	accessCodeHandler := handlers.NewAccessCodeHandler(core.AccessCodes, core.RateLimits, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     append(cfg.CORS.AllowedHeaders, middleware.OrganizationHeader),
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")
	{
		// Gateway callbacks (public, verified by the gateway adapter)
		v1.POST("/payments/webhook", paymentHandler.Webhook)

		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(jwtService))

		// Availability
		resources := authed.Group("/resources")
		{
			resources.GET("/:id/slots", availabilityHandler.GetSlots)
			resources.GET("/:id/availability", availabilityHandler.CheckAvailability)
		}

		// Bookings
		bookings := authed.Group("/bookings")
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.GET("/:id/summary", bookingHandler.GetBookingSummary)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
			bookings.POST("/:id/reschedule", bookingHandler.RescheduleBooking)
			bookings.POST("/:id/pay", paymentHandler.PayBooking)

			staffOnly := bookings.Group("")
			staffOnly.Use(middleware.RequireRole(jwt.RoleStaff, jwt.RoleAdmin))
			{
				staffOnly.POST("/:id/confirm", bookingHandler.ConfirmBooking)
				staffOnly.POST("/:id/complete", bookingHandler.CompleteBooking)
				staffOnly.POST("/:id/no-show", bookingHandler.MarkNoShow)
				staffOnly.POST("/:id/check-in", bookingHandler.CheckIn)
			}
		}

		// Wallet
		wallet := authed.Group("/wallet")
		{
			wallet.GET("", walletHandler.GetWallet)
			wallet.GET("/transactions", walletHandler.GetTransactions)
			wallet.POST("/top-up", walletHandler.TopUp)
		}

		// Check-in kiosk
		accessCodes := authed.Group("/access-codes")
		accessCodes.Use(middleware.RequireRole(jwt.RoleStaff, jwt.RoleAdmin))
		{
			accessCodes.POST("/validate", accessCodeHandler.Validate)
			accessCodes.POST("/check", accessCodeHandler.Check)
		}

		authed.GET("/admin/cron/status", middleware.RequireRole(jwt.RoleAdmin), func(c *gin.Context) {
			c.JSON(http.StatusOK, core.Cron.GetJobStatus())
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *database.PostgresDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
