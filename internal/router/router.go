package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/nianhua/banquet-reservation/internal/config"
	"github.com/nianhua/banquet-reservation/internal/handler"
	"github.com/nianhua/banquet-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance: the health check and the public
// seat-map browse endpoint.  When a Redis client is supplied the seat
// map is served through the short-TTL response cache.
func RegisterRoutes(e *echo.Echo, b *handler.BookingHandler, rdb *redis.Client) {
	// Load balancers and monitoring probe this endpoint.
	e.GET("/healthz", handler.Health)

	// Guests can inspect availability before signing in.  With Redis
	// available the map is served through the short-TTL cache.
	var mw []echo.MiddlewareFunc
	if rdb != nil {
		mw = append(mw, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	}
	e.GET("/v1/sessions/:type/seatmap", b.SeatMap, mw...)
}

// RegisterBooking registers the authenticated booking endpoints.  All
// handlers in the group run the JWTAuth middleware first; the create
// endpoint additionally sits behind the distributed rate limiter when
// Redis is available.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))

	if rdb != nil {
		rlCfg := config.LoadRateLimitConfig()
		g.Use(middleware.NewTokenBucket(rlCfg, rdb))
	}

	// Place a booking: the full validate-lock-consume-persist pipeline.
	g.POST("/bookings", b.CreateBooking)
	// Advisory availability check for a specific seat selection.
	g.POST("/bookings/check", b.CheckSeats)
	// The caller's booking history and detail views.
	g.GET("/bookings", b.ListBookings)
	g.GET("/bookings/:id", b.GetBooking)
}
