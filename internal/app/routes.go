package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opennow/core/internal/config"
	"github.com/opennow/core/internal/middleware"
	"github.com/opennow/core/internal/modules/backup"
	"github.com/opennow/core/internal/modules/external"
	"github.com/opennow/core/internal/modules/health"
	"github.com/opennow/core/internal/modules/shop"
	"github.com/opennow/core/internal/modules/tasks"
	pkgredis "github.com/opennow/core/internal/pkg/redis"
	"github.com/opennow/core/internal/pkg/response"
)

func (a *App) registerRoutes(rc *pkgredis.Client, shopSvc *shop.Service, backupSvc *backup.Service) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    "opennow-core",
		"version": "1.0.0",
		"message": "Community-tracked shop open/closed status",
	}

	// Rate limiting and idempotence run on every route (requires Redis).
	r.Use(middleware.RateLimit(rc.Raw()))
	r.Use(middleware.Idempotence(rc.Raw()))

	api := r.Group("/api")

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptimeMs := time.Since(processStart).Milliseconds()
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptimeMs,
			"humanize":  humanizeDuration(time.Duration(uptimeMs) * time.Millisecond),
		})
	})

	shop.NewHandler(shopSvc).RegisterRoutes(api)

	providers := buildProviderChain(a.cfg)
	externalSvc := external.NewService(providers, rc, a.cfg.Providers.CacheTTL, a.logger.Named("ExternalService"))
	external.NewHandler(externalSvc, a.cfg.Providers.RadiusMeters).RegisterRoutes(api)

	backup.NewHandler(backupSvc).RegisterRoutes(api)
	tasks.NewHandler(a.sched).RegisterRoutes(api)
	health.NewHandler(a.db, a.sched, processStart).RegisterRoutes(api)
}

// buildProviderChain assembles the place-data fallback order: Google when a
// key is configured, then Overpass, then the demo generator so the endpoint
// always answers.
func buildProviderChain(cfg *config.AppConfig) []external.Provider {
	providers := make([]external.Provider, 0, 3)
	google := external.NewGoogleProvider(cfg.Providers.GoogleMapsAPIKey)
	if google.Configured() {
		providers = append(providers, google)
	}
	providers = append(providers,
		external.NewOSMProvider(cfg.Providers.OverpassURL),
		external.NewDemoProvider(),
	)
	return providers
}
