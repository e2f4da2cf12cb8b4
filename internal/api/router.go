package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"charging-queue-backend/config"
	"charging-queue-backend/internal/mw"
	"charging-queue-backend/internal/stream"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, handler *Handler, gateway *stream.Gateway) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	// Short-lived cache on the polling snapshot routes only. The poll
	// path is the correctness backstop for dropped pushes, so the TTL
	// stays in the low seconds.
	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Hardware inbound
		api.POST("/hardware/reports", handler.PostHardwareReport)

		// Stations and port snapshots (polling fallback)
		api.GET("/stations", caching, handler.GetStations)
		api.GET("/stations/:station_id/ports", caching, handler.GetPortSnapshot)

		// Virtual queue
		api.POST("/stations/:station_id/queue", handler.JoinQueue)
		api.GET("/stations/:station_id/queue", handler.GetQueue)
		api.GET("/stations/:station_id/queue/:user_id", handler.GetQueuePosition)
		api.DELETE("/stations/:station_id/queue/:user_id", handler.LeaveQueue)

		// Notifications
		api.GET("/users/:user_id/notifications", handler.GetNotifications)
		api.POST("/users/:user_id/notifications/:id/read", handler.MarkNotificationRead)

		// One-shot availability watches
		api.PUT("/watches", handler.PutWatch)
		api.DELETE("/watches", handler.DeleteWatch)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	// Live streams bypass the cache middleware; heartbeats keep the
	// transport alive, not cached bodies.
	r.GET("/api/stations/stream", gateway.StationStream)
	r.GET("/api/users/:user_id/stream", gateway.UserStream)

	return r
}
