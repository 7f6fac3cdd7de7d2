// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/config"
	"github.com/fleveque/domain-logo-service/internal/handler"
	"github.com/fleveque/domain-logo-service/internal/middleware"
)

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// Dependencies are passed explicitly; each handler gets exactly what it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, svc handler.LogoService, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(svc)
	logoHandler := handler.NewLogoHandler(svc, logger)
	adminHandler := handler.NewAdminHandler(svc, logger)

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys, cfg.Auth.AdminKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.POST("/logos", logoHandler.Extract)
		authed.GET("/logos", logoHandler.List)
		authed.GET("/logos/:id", logoHandler.Get)
		authed.GET("/logos/:id/image", logoHandler.Image)
		authed.GET("/logos/:id/attempts", logoHandler.Attempts)
		authed.GET("/domains/:domain", logoHandler.GetByDomain)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.DELETE("/logos/:id", adminHandler.Delete)
	}
}
