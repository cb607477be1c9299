package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"macman/internal/metrics"
	"macman/internal/models"
	"macman/internal/service"
	"macman/internal/store"
)

type createReleaseRequest struct {
	Version      string             `json:"version" binding:"required"`
	BuildNumber  int                `json:"build_number"`
	ReleaseType  models.ReleaseType `json:"release_type"`
	Filename     string             `json:"filename" binding:"required"`
	FileSize     int64              `json:"file_size"`
	Checksum     string             `json:"checksum"`
	ReleaseNotes string             `json:"release_notes"`
	ForceUpdate  bool               `json:"force_update"`
}

type checkForUpdateRequest struct {
	Version    string  `json:"version" binding:"required"`
	Platform   string  `json:"platform"`
	UserID     string  `json:"userId" binding:"required"`
	AppVersion *string `json:"appVersion"`
}

type updateHistoryRequest struct {
	UserID        string               `json:"userId" binding:"required"`
	TargetVersion string               `json:"targetVersion" binding:"required"`
	Status        models.HistoryStatus `json:"status" binding:"required"`
	ErrorMessage  *string              `json:"errorMessage"`
}

// CheckForUpdateHandler handles POST /api/updates/check
func CheckForUpdateHandler(resolver *service.UpdateResolver, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkForUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "version and userId are required"})
			return
		}

		result, err := resolver.CheckForUpdate(c.Request.Context(), service.CheckForUpdateParams{
			Version:    req.Version,
			UserID:     req.UserID,
			Platform:   req.Platform,
			AppVersion: req.AppVersion,
		})
		if err != nil {
			respondError(c, err, "Failed to check for updates")
			return
		}

		if m != nil {
			m.ObserveUpdateCheck(result.UpdateAvailable)
		}
		if result.UpdateAvailable {
			slog.Info("Update offered", "user_id", req.UserID, "from", req.Version, "to", result.Update.Version)
		}

		c.JSON(http.StatusOK, result)
	}
}

// RecordUpdateHistoryHandler handles POST /api/updates/history
func RecordUpdateHistoryHandler(resolver *service.UpdateResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateHistoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := resolver.RecordHistoryStatus(c.Request.Context(), req.UserID, req.TargetVersion, req.Status, req.ErrorMessage); err != nil {
			respondError(c, err, "Failed to record update status")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Update status recorded"})
	}
}

// DownloadUpdateHandler handles GET /api/updates/download/:version
func DownloadUpdateHandler(resolver *service.UpdateResolver, updatesDir string, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		version := c.Param("version")

		release, err := resolver.GetRelease(c.Request.Context(), version)
		if err != nil {
			respondError(c, err, "Failed to download update")
			return
		}

		path := filepath.Join(updatesDir, filepath.Base(release.Filename))
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				slog.Error("Update artifact missing on disk", "version", version, "path", path)
				c.JSON(http.StatusNotFound, gin.H{"error": "Update file not found"})
				return
			}
			slog.Error("Failed to stat update artifact", "error", err, "path", path)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to download update"})
			return
		}

		if _, err := resolver.DownloadArtifact(c.Request.Context(), version); err != nil {
			respondError(c, err, "Failed to download update")
			return
		}
		if m != nil {
			m.Downloads.WithLabelValues(release.Version).Inc()
		}

		slog.Info("Serving update", "version", release.Version, "file", release.Filename, "ip", c.ClientIP())
		c.FileAttachment(path, filepath.Base(release.Filename))
	}
}

// CreateReleaseHandler handles POST /admin/updates
func CreateReleaseHandler(resolver *service.UpdateResolver, logStore store.LogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createReleaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		release, err := resolver.CreateRelease(c.Request.Context(), service.CreateReleaseParams{
			Version:      req.Version,
			BuildNumber:  req.BuildNumber,
			ReleaseType:  req.ReleaseType,
			Filename:     req.Filename,
			FileSize:     req.FileSize,
			Checksum:     req.Checksum,
			ReleaseNotes: req.ReleaseNotes,
			ForceUpdate:  req.ForceUpdate,
		})
		if err != nil {
			respondError(c, err, "Failed to create release")
			return
		}

		logAdminAction(c, logStore, "CREATE_RELEASE", "UPDATE", &release.ID, map[string]interface{}{
			"version":      release.Version,
			"build_number": release.BuildNumber,
			"release_type": release.ReleaseType,
		})

		c.JSON(http.StatusCreated, release)
	}
}

// ListReleasesHandler handles GET /admin/updates
func ListReleasesHandler(resolver *service.UpdateResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		pagination := ParsePaginationParams(c)

		releases, totalCount, err := resolver.ListReleases(c.Request.Context(), pagination)
		if err != nil {
			respondError(c, err, "Failed to list releases")
			return
		}

		c.JSON(http.StatusOK, models.NewPaginatedList(releases, totalCount, pagination))
	}
}

// DeactivateReleaseHandler handles POST /admin/updates/:version/deactivate
func DeactivateReleaseHandler(resolver *service.UpdateResolver, logStore store.LogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		version := c.Param("version")

		release, err := resolver.DeactivateRelease(c.Request.Context(), version)
		if err != nil {
			respondError(c, err, "Failed to deactivate release")
			return
		}

		logAdminAction(c, logStore, "DEACTIVATE_RELEASE", "UPDATE", &release.ID, map[string]interface{}{"version": version})

		c.JSON(http.StatusOK, gin.H{"message": "Release deactivated", "release": release})
	}
}

// UpdateStatsHandler handles GET /admin/updates/stats
func UpdateStatsHandler(resolver *service.UpdateResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := resolver.Statistics(c.Request.Context())
		if err != nil {
			respondError(c, err, "Failed to get update stats")
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
