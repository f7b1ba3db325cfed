package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shipstream/api/internal/app"
	"github.com/shipstream/api/internal/config"
	"github.com/shipstream/api/internal/infra/courier"
	"github.com/shipstream/api/internal/infra/http"
	"github.com/shipstream/api/internal/infra/http/handler"
	"github.com/shipstream/api/internal/infra/http/routes"
	"github.com/shipstream/api/internal/infra/postgres"
	"github.com/shipstream/api/internal/infra/redis"
	"github.com/shipstream/api/internal/ratelimit"
	"github.com/shipstream/api/pkg/domain/webhook"
	"github.com/shipstream/api/pkg/logger"
	"github.com/shipstream/api/pkg/validator"
)

const (
	subscriptionListTTL = time.Hour
	registryStatusTTL   = 5 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	if cfg.Courier.WebhookSecret == "" {
		log.Warn("COURIER_WEBHOOK_SECRET is not set, webhook signature verification is disabled")
	}

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	listCache := redis.MustNewCache[[]webhook.Subscription](redisClient, "webhook:list", subscriptionListTTL)
	statusCache := redis.MustNewCache[webhook.RegistryStatus](redisClient, "webhook:status", registryStatusTTL)

	eventLog, err := redis.NewWebhookEventLog(redisClient, log)
	if err != nil {
		log.Error("failed to initialize webhook event log", "error", err)
		return 1
	}

	provider, err := courier.NewClient(&cfg.Courier, log)
	if err != nil {
		log.Error("failed to initialize courier client", "error", err)
		return 1
	}

	// ==========================================================================
	// Rate Limiter
	// ==========================================================================
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		redisLimiter, err := redis.NewFixedWindowLimiter(redisClient, "ratelimit:webhook", cfg.RateLimit.Limit, cfg.RateLimit.Window, log)
		if err != nil {
			log.Warn("falling back to process-local rate limiter", "error", err)
			limiter = ratelimit.NewFixedWindow(cfg.RateLimit.Limit, cfg.RateLimit.Window)
		} else {
			limiter = redisLimiter
		}
		log.Info("rate limiter enabled", "limit", cfg.RateLimit.Limit, "window", cfg.RateLimit.Window)
	}

	// ==========================================================================
	// Repositories & Services
	// ==========================================================================
	shipmentRepo := postgres.NewShipmentRepository(db)

	registryService := app.NewWebhookRegistryService(provider, listCache, statusCache, eventLog, cfg.Courier.CallbackURL(), log)
	syncService := app.NewTrackingSyncService(shipmentRepo, log)
	trackingService := app.NewTrackingService(shipmentRepo, provider, log)
	log.Info("services initialized")

	// ==========================================================================
	// Handlers & HTTP Server
	// ==========================================================================
	v := validator.New()
	handlers := routes.Handlers{
		Health:         handler.NewHealthHandler(handler.WithDatabase(db), handler.WithRedis(redisClient)),
		Shipment:       handler.NewShipmentHandler(trackingService, v, log),
		WebhookAdmin:   handler.NewWebhookAdminHandler(registryService, v, log),
		CourierWebhook: handler.NewCourierWebhookHandler(syncService, registryService, cfg.Courier.WebhookSecret, log),
	}

	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), handlers, limiter, log)

	// ==========================================================================
	// Webhook Auto-Registration
	// ==========================================================================
	// Fire and continue: a provider outage at boot must not block startup,
	// registration is retried on the next restart.
	if cfg.Courier.AutoRegister {
		go func() {
			regCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			sub, err := registryService.AutoRegister(regCtx)
			if err != nil {
				log.Warn("webhook auto-registration failed", "error", err)
				return
			}
			log.Info("webhook subscription ensured",
				"webhook_id", sub.ID,
				"url", sub.URL,
			)
		}()
	}

	// ==========================================================================
	// Start Server
	// ==========================================================================
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func initLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
