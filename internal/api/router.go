package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"course-racer/internal/metrics"
	"course-racer/internal/mw"
)

// RouterOptions configures the middleware in front of the handlers.
type RouterOptions struct {
	RateLimitPerSec float64
	CacheTTL        time.Duration
	Metrics         *metrics.Metrics
}

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	burst := int(opts.RateLimitPerSec)
	if burst < 1 {
		burst = 1
	}
	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), burst)

	cacheStore := cache.New(opts.CacheTTL, time.Minute)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/status", caching, handler.GetStatus)
		api.GET("/availability", caching, handler.GetAvailability)
		api.GET("/attempts", handler.GetAttempts)

		api.DELETE("/selections", handler.DropSelection)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
