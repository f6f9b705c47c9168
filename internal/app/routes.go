package app

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the engine. User routes are served both at the root and
// under /api.
func NewRouter(a *App, allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(a.Logger), cors.New(corsConfig(allowOrigins)))

	r.GET("/health", a.HealthHandler)

	registerUserRoutes(&r.RouterGroup, a)
	registerUserRoutes(r.Group("/api"), a)
	return r
}

func registerUserRoutes(g *gin.RouterGroup, a *App) {
	users := g.Group("/users")
	{
		users.GET("/:username/availability", a.AvailabilityHandler)
		users.POST("/:username/schedule", a.CreateBookingHandler)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
