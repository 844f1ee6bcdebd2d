package handlers

import (
	portssvc "github.com/SscSPs/money_oxr/internal/core/ports/services"
	"github.com/SscSPs/money_oxr/internal/middleware"
	"github.com/SscSPs/money_oxr/internal/platform/config"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up all application routes.
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	setupAPIV1Routes(r, cfg, services)
}

// setupAPIV1Routes configures the /api/v1 group. Bearer auth applies only
// when a JWT secret is configured.
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	v1 := r.Group("/api/v1")
	if cfg.JWTSecret != "" {
		v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	}

	RegisterExchangeRateRoutes(v1, services.ExchangeRate)
}
