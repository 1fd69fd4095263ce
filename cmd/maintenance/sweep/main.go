package main

import (
	"flag"
	"os"
	"time"

	"github.com/courtly/court-booking-backend/internal/config"
	"github.com/courtly/court-booking-backend/internal/database"
	"github.com/courtly/court-booking-backend/internal/services"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// sweep runs the scheduled booking jobs once: expire stale pending
// bookings and settle card refunds. Useful from an external scheduler or
// after downtime.
func main() {
	var dbURLFlag string
	var pendingTTL time.Duration
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.DurationVar(&pendingTTL, "pending-ttl", 0, "Override PENDING_BOOKING_TTL_MINUTES")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	_ = godotenv.Load()
	if dbURLFlag != "" {
		os.Setenv("DATABASE_URL", dbURLFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if pendingTTL > 0 {
		cfg.Booking.PendingTTL = pendingTTL
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	gateway, err := services.NewPaymentGateway(cfg.Payment, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize payment gateway: %v", err)
	}

	core := services.NewContainer(cfg, db, nil, nil, gateway, logger)
	core.Cron.RunOnce()

	logger.Info("Maintenance sweep finished")
}
