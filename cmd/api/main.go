// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
	"github.com/your-org/storefront-backend/internal/interfaces/http"
	"github.com/your-org/storefront-backend/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-backend/internal/interfaces/http/routes"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
	"github.com/your-org/storefront-backend/internal/pkg/notify"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.Logging)
	logg.WithFields(logrus.Fields{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("Starting application")

	// Connect to database
	db, err := postgres.NewConnection(cfg, logg)
	if err != nil {
		logg.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Redis only backs the cart cache and rate limiter, so start without it
	redisClient, err := redis.NewConnection(cfg, logg)
	if err != nil {
		logg.WithError(err).Warn("Redis unavailable, carts will be served from the database")
	}
	defer redisClient.Close()

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB(), logg)

	if err := migration.RunAutoMigrations(); err != nil {
		logg.WithError(err).Fatal("Database migration failed")
	}

	if err := migration.CreateIndexes(); err != nil {
		logg.WithError(err).Fatal("Index creation failed")
	}

	// Seed initial data in development
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			logg.WithError(err).Warn("Data seeding failed")
		}
		if err := migration.GetTableInfo(); err != nil {
			logg.WithError(err).Warn("Could not read table info")
		}
	}

	// Domain services
	notifier := notify.New(cfg.Notify, logg)
	ledger := product.NewLedger(db.GetDB())

	cartService := cart.NewService(
		cart.NewStore(db.GetDB()),
		cart.NewRedisCache(redisClient.GetClient(), cfg.Cart.CacheTimeout, logg),
		ledger,
		cfg.Cart,
		logg,
	)
	orderService := order.NewService(db.GetDB(), cartService, notifier, cfg.Database, logg)

	signer := payment.NewSigner(cfg.Payment.PublicKey, cfg.Payment.PrivateKey)
	processor := payment.NewProcessor(db.GetDB(), signer, notifier, cfg.Database.TxTimeout, logg)
	paymentService := payment.NewService(db.GetDB(), orderService, signer, cfg.Payment, logg)

	server := http.NewServer(cfg, http.Dependencies{
		Handlers: routes.Handlers{
			Cart:    handlers.NewCartHandler(cartService, logg),
			Order:   handlers.NewOrderHandler(orderService, logg),
			Payment: handlers.NewPaymentHandler(processor, paymentService, cfg.Payment.ResultURL, logg),
		},
		Health:      handlers.NewHealthHandler(db, redisClient, cfg.App.Version, logg),
		Tokens:      auth.NewJWTManager(cfg.JWT),
		RedisClient: redisClient.GetClient(),
	}, logg)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logg.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logg.Info("Shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logg.WithError(err).Error("Failed to shutdown HTTP server gracefully")
	}

	// Let pending cache fills finish before the Redis client goes away
	cartService.Wait()

	logg.Info("Server shutdown completed")
}
