package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"macman/internal/models"
	"macman/internal/service"
	"macman/internal/store"
)

const recentAdminLogsLimit = 10

// GetDashboardStatsHandler handles GET /admin/stats
func GetDashboardStatsHandler(engine *service.LicenseEngine, resolver *service.UpdateResolver, logStore store.LogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var (
			licenses *models.LicenseStats
			updates  *models.UpdateStats
			recent   []models.AdminLog
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			licenses, err = engine.Statistics(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			updates, err = resolver.Statistics(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			recent, _, err = logStore.ListAdminLogs(gctx, models.PaginationParams{Page: 1, Limit: recentAdminLogsLimit})
			return err
		})
		if err := g.Wait(); err != nil {
			respondError(c, err, "Failed to get dashboard stats")
			return
		}

		if recent == nil {
			recent = []models.AdminLog{}
		}

		c.JSON(http.StatusOK, models.DashboardStats{
			Licenses:        *licenses,
			Updates:         *updates,
			RecentAdminLogs: recent,
		})
	}
}
