// Package routes registers all HTTP routes for the API.
package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	infrahttp "github.com/shipstream/api/internal/infra/http"
	"github.com/shipstream/api/internal/infra/http/handler"
	"github.com/shipstream/api/internal/infra/http/middleware"
	"github.com/shipstream/api/internal/ratelimit"
	"github.com/shipstream/api/pkg/logger"
)

// Middleware is an alias to the http package's Middleware type.
type Middleware = infrahttp.Middleware

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health         *handler.HealthHandler
	Shipment       *handler.ShipmentHandler       // nil if not initialized (no database)
	WebhookAdmin   *handler.WebhookAdminHandler   // nil if provider not configured
	CourierWebhook *handler.CourierWebhookHandler // nil if provider not configured
}

// Register registers all application routes.
// The limiter guards the courier ingestion endpoint; pass nil to disable
// rate limiting.
func Register(router Router, h Handlers, limiter ratelimit.Limiter, log *logger.Logger) {
	registerHealthRoutes(router, h.Health)

	if h.CourierWebhook != nil {
		registerCourierWebhookRoutes(router, h.CourierWebhook, limiter, log)
	}

	if h.WebhookAdmin != nil {
		registerWebhookAdminRoutes(router, h.WebhookAdmin)
	}

	if h.Shipment != nil {
		registerShipmentRoutes(router, h.Shipment)
	}
}

// registerHealthRoutes registers health check endpoints.
func registerHealthRoutes(router Router, h *handler.HealthHandler) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
}

// registerCourierWebhookRoutes registers the provider-facing ingestion
// endpoint. Rate limiting applies to the POST path only so the provider's
// challenge probe is never throttled.
func registerCourierWebhookRoutes(router Router, h *handler.CourierWebhookHandler, limiter ratelimit.Limiter, log *logger.Logger) {
	var middlewares []Middleware
	if limiter != nil {
		middlewares = append(middlewares, middleware.RateLimit(limiter, log))
	}

	router.POST("/webhooks/courier", h.Receive, middlewares...)
	router.GET("/webhooks/courier", h.Verify)
}

// registerWebhookAdminRoutes registers subscription management endpoints.
func registerWebhookAdminRoutes(router Router, h *handler.WebhookAdminHandler) {
	router.Group("/api/v1/webhooks", func(r Router) {
		r.GET("/", h.List)
		r.POST("/", h.Register)

		// Fixed paths before /{id} so chi matches them first.
		r.GET("/status", h.Status)
		r.GET("/events/{trackingNumber}", h.Events)
		r.POST("/auto-register", h.AutoRegister)

		r.GET("/{id}", h.Get)
		r.PUT("/{id}", h.Update)
		r.PATCH("/{id}", h.Update)
		r.DELETE("/{id}", h.Delete)
		r.POST("/{id}/test", h.Test)
	})
}

// registerShipmentRoutes registers shipment endpoints.
func registerShipmentRoutes(router Router, h *handler.ShipmentHandler) {
	router.Group("/api/v1/shipments", func(r Router) {
		r.POST("/", h.Create)
		r.GET("/tracking/{carrier}/{trackingNumber}", h.GetByTracking)
		r.GET("/{id}", h.Get)
	})
}
