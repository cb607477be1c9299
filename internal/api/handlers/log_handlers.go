package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"macman/internal/models"
	"macman/internal/store"
)

// GetLicenseCheckLogsHandler handles GET /admin/logs/validations. Both
// license_key and status_code are optional filters.
func GetLicenseCheckLogsHandler(logStore store.LogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var statusCode *int
		if statusCodeStr := c.Query("status_code"); statusCodeStr != "" {
			code, err := strconv.Atoi(statusCodeStr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status_code parameter"})
				return
			}
			statusCode = &code
		}

		pagination := ParsePaginationParams(c)

		logs, totalCount, err := logStore.ListLicenseCheckLogs(ctx, c.Query("license_key"), statusCode, pagination)
		if err != nil {
			respondError(c, err, "Failed to fetch license check logs")
			return
		}

		c.JSON(http.StatusOK, models.NewPaginatedList(logs, totalCount, pagination))
	}
}

// GetAdminLogsHandler handles GET /admin/logs/admin-actions
func GetAdminLogsHandler(logStore store.LogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		pagination := ParsePaginationParams(c)

		logs, totalCount, err := logStore.ListAdminLogs(ctx, pagination)
		if err != nil {
			respondError(c, err, "Failed to fetch admin logs")
			return
		}

		c.JSON(http.StatusOK, models.NewPaginatedList(logs, totalCount, pagination))
	}
}
