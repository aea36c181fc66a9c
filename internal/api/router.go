package api

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"fish-feeder-backend/internal/metrics"
	"fish-feeder-backend/internal/mw"
)

// RouterConfig holds the HTTP-level settings of the router.
type RouterConfig struct {
	RateLimit     rate.Limit
	RateBurst     int
	CacheTTL      time.Duration
	OperatorToken string
	DeviceToken   string
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Second
	}

	metrics.Register()
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.OperatorToken == "" {
		log.Println("Warning: operator token is not set; operator routes are unauthenticated")
	}
	if cfg.DeviceToken == "" {
		log.Println("Warning: device token is not set; device routes are unauthenticated")
	}

	rateLimiter := mw.RateLimiter(cfg.RateLimit, cfg.RateBurst)

	// Status reads are cached briefly; any successful write flushes the cache.
	cacheStore := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	caching := mw.Cache(cacheStore, cfg.CacheTTL)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.GET("/feeder/status", caching, h.GetStatus)
		api.GET("/feeder/history", caching, h.GetHistory)
		api.GET("/reservations", h.ListReservations)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		operator := api.Group("", mw.BearerToken(cfg.OperatorToken))
		operator.POST("/feeder/check", h.PostCheck)
		operator.POST("/feeder/feed", h.PostFeed)
		operator.POST("/reservations", h.PostReservation)
		operator.DELETE("/reservations", h.DeleteReservation)
		operator.PUT("/config/timer", h.PutTimer)
		operator.PUT("/config/priority", h.PutPriority)

		device := api.Group("/device", mw.BearerToken(cfg.DeviceToken))
		device.POST("/heartbeat", h.PostHeartbeat)
		device.GET("/command", h.GetCommand)
		device.POST("/ack", h.PostAck)
	}

	return r
}
