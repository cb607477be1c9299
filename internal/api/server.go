package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"macman/internal/api/handlers"
	"macman/internal/api/middleware"
	"macman/internal/config"
	"macman/internal/metrics"
	"macman/internal/service"
	"macman/internal/store"
)

type Server struct {
	Router *gin.Engine
	DB     *pgxpool.Pool
	Config config.Config

	Licenses *service.LicenseEngine
	Updates  *service.UpdateResolver
	LogStore store.LogStore
	Metrics  *metrics.Metrics
}

func NewServer(cfg config.Config, db *pgxpool.Pool, engine *service.LicenseEngine, resolver *service.UpdateResolver, logs store.LogStore, m *metrics.Metrics) *Server {
	r := gin.Default()

	if len(cfg.TrustedProxies) > 0 {
		r.SetTrustedProxies(cfg.TrustedProxies)
	}

	server := &Server{
		Router:   r,
		DB:       db,
		Config:   cfg,
		Licenses: engine,
		Updates:  resolver,
		LogStore: logs,
		Metrics:  m,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	adminRateLimiter := middleware.RateLimitMiddleware("admin", s.Config.RateLimitAdmin, s.Metrics)
	checkRateLimiter := middleware.RateLimitMiddleware("check", s.Config.RateLimitCheck, s.Metrics)

	// Streamed responses are not buffered for signing.
	s.Router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	s.Router.GET("/api/updates/download/:version", checkRateLimiter, handlers.DownloadUpdateHandler(s.Updates, s.Config.UpdatesDir, s.Metrics))

	signed := s.Router.Group("/")
	signed.Use(middleware.ResponseSigningMiddleware(s.Config.ResponseSigningPrivateKey))

	signed.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := signed.Group("/api")
	public.Use(checkRateLimiter)
	{
		public.POST("/license/validate", handlers.ValidateLicenseHandler(s.Licenses, s.Config.ResponseSigningPrivateKey, s.LogStore, s.Metrics))
		public.POST("/updates/check", handlers.CheckForUpdateHandler(s.Updates, s.Metrics))
		public.POST("/updates/history", handlers.RecordUpdateHistoryHandler(s.Updates))
	}

	authorized := signed.Group("/admin")
	authorized.Use(adminRateLimiter)
	authorized.Use(middleware.JWTAuth(s.Config))
	{
		authorized.GET("/stats", handlers.GetDashboardStatsHandler(s.Licenses, s.Updates, s.LogStore))

		// License Management
		authorized.POST("/licenses", handlers.CreateLicenseHandler(s.Licenses, s.LogStore))
		authorized.GET("/licenses", handlers.ListLicensesHandler(s.Licenses))
		authorized.GET("/licenses/stats", handlers.LicenseStatsHandler(s.Licenses))
		authorized.GET("/licenses/:key", handlers.GetLicenseHandler(s.Licenses))
		authorized.POST("/licenses/:key/deactivate", handlers.DeactivateLicenseHandler(s.Licenses, s.LogStore))
		authorized.DELETE("/licenses/:key/devices/:machineId", handlers.DeactivateDeviceHandler(s.Licenses, s.LogStore))

		// Release Management
		authorized.POST("/updates", handlers.CreateReleaseHandler(s.Updates, s.LogStore))
		authorized.GET("/updates", handlers.ListReleasesHandler(s.Updates))
		authorized.GET("/updates/stats", handlers.UpdateStatsHandler(s.Updates))
		authorized.POST("/updates/:version/deactivate", handlers.DeactivateReleaseHandler(s.Updates, s.LogStore))

		// Log Management
		authorized.GET("/logs/validations", handlers.GetLicenseCheckLogsHandler(s.LogStore))
		authorized.GET("/logs/admin-actions", handlers.GetAdminLogsHandler(s.LogStore))
	}
}
