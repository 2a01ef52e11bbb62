package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-inventory/internal/config"
	"github.com/iliyamo/ticket-inventory/internal/handler"
	"github.com/iliyamo/ticket-inventory/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
// Currently that is only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterCheckout wires the hold lifecycle under /v1/layouts.  All
// three routes require a valid access token; the token-bucket limiter
// runs after authentication so per-user keying sees the user ID.
func RegisterCheckout(e *echo.Echo, h *handler.CheckoutHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/layouts")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("BUYER", "ADMIN"))
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))
	g.POST("/:id/holds", h.PlaceHold)
	g.DELETE("/:id/holds", h.ReleaseHold)
	g.POST("/:id/confirm", h.ConfirmSale)
}

// RegisterInventory wires the read-only views.  They sit behind the
// same JWT gate but are fronted by the response cache rather than the
// rate limiter; repeated availability polling should hit Redis, not
// MySQL.
func RegisterInventory(e *echo.Echo, h *handler.InventoryHandler, jwtSecret string, cacheCfg config.CacheConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN", "REPORTING"))
	g.Use(middleware.NewRedisCache(cacheCfg, rdb))
	g.GET("/layouts/:id/units", h.ListUnits)
	g.GET("/holds", h.ListHolds)
}
