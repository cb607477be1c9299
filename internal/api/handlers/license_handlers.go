package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"macman/internal/metrics"
	"macman/internal/models"
	"macman/internal/service"
	"macman/internal/store"
)

type validateLicenseRequest struct {
	LicenseKey string  `json:"licenseKey"`
	MachineID  string  `json:"machineId" binding:"required"`
	DeviceName *string `json:"deviceName"`
	OSVersion  *string `json:"osVersion"`
	AppVersion *string `json:"appVersion"`
}

type createLicenseRequest struct {
	Plan       models.Plan `json:"plan" binding:"required"`
	Email      *string     `json:"email"`
	MaxDevices *int        `json:"max_devices"`
	ExpiresAt  *time.Time  `json:"expires_at"`
	Duration   string      `json:"duration"`
}

// ValidateLicenseHandler handles POST /api/license/validate
func ValidateLicenseHandler(engine *service.LicenseEngine, responseSigningPrivateKey string, logStore store.LogStore, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validateLicenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "licenseKey and machineId are required"})
			return
		}

		logEntry := &models.LicenseCheckLog{
			RequestPayload: map[string]interface{}{
				"machine_id":  req.MachineID,
				"device_name": req.DeviceName,
				"os_version":  req.OSVersion,
				"app_version": req.AppVersion,
			},
			LicenseKey: req.LicenseKey,
			MachineID:  req.MachineID,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			CreatedAt:  time.Now(),
		}

		outcome, err := engine.Validate(c.Request.Context(), service.ValidateParams{
			LicenseKey: req.LicenseKey,
			MachineID:  req.MachineID,
			DeviceName: req.DeviceName,
			OSVersion:  req.OSVersion,
			AppVersion: req.AppVersion,
		})
		if err != nil {
			respondError(c, err, "Failed to validate license")
			logEntry.StatusCode = c.Writer.Status()
			logEntry.ResponsePayload = map[string]interface{}{"error": err.Error()}
			service.AsyncLogLicenseCheck(c.Request.Context(), logStore, logEntry, false, err.Error())
			return
		}

		result := outcome.Result
		if outcome.License != nil {
			logEntry.LicenseID = &outcome.License.ID
		}

		if result.Valid && responseSigningPrivateKey != "" {
			token, err := service.SignValidation(responseSigningPrivateKey, req.MachineID, result.Data, outcome.License.ExpiresAt)
			if err != nil {
				slog.Error("Failed to generate validation token", "error", err, "key", req.LicenseKey)
			} else {
				result.Token = token
			}
		}

		if m != nil {
			m.ObserveValidation(result.Valid, string(result.ErrorType))
		}

		logEntry.StatusCode = http.StatusOK
		logEntry.ResponsePayload = toPayload(result)
		reason := ""
		if !result.Valid {
			reason = result.Message
		}
		service.AsyncLogLicenseCheck(c.Request.Context(), logStore, logEntry, result.Valid, reason)

		c.JSON(http.StatusOK, result)
	}
}

// CreateLicenseHandler handles POST /admin/licenses
func CreateLicenseHandler(engine *service.LicenseEngine, logStore store.LogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createLicenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if req.ExpiresAt != nil && req.Duration != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot specify both expires_at and duration"})
			return
		}

		expiresAt := req.ExpiresAt
		if req.Duration != "" {
			exp, err := ParseExpirationDuration(req.Duration)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid duration format: %v", err)})
				return
			}
			expiresAt = &exp
		}

		slog.Info("Creating license", "plan", req.Plan)

		license, err := engine.Create(c.Request.Context(), service.CreateLicenseParams{
			Plan:       req.Plan,
			Email:      req.Email,
			MaxDevices: req.MaxDevices,
			ExpiresAt:  expiresAt,
		})
		if err != nil {
			respondError(c, err, "Failed to create license")
			return
		}

		slog.Info("License created", "license_key", license.Key, "plan", license.Plan)
		logAdminAction(c, logStore, "CREATE_LICENSE", "LICENSE", &license.ID, toPayload(license))

		c.JSON(http.StatusCreated, license)
	}
}

// ListLicensesHandler handles GET /admin/licenses
func ListLicensesHandler(engine *service.LicenseEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		pagination := ParsePaginationParams(c)

		licenses, totalCount, err := engine.ListLicenses(c.Request.Context(), pagination)
		if err != nil {
			respondError(c, err, "Failed to list licenses")
			return
		}

		c.JSON(http.StatusOK, models.NewPaginatedList(licenses, totalCount, pagination))
	}
}

// GetLicenseHandler handles GET /admin/licenses/:key
func GetLicenseHandler(engine *service.LicenseEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := engine.GetLicense(c.Request.Context(), c.Param("key"))
		if err != nil {
			respondError(c, err, "Failed to get license")
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// DeactivateLicenseHandler handles POST /admin/licenses/:key/deactivate
func DeactivateLicenseHandler(engine *service.LicenseEngine, logStore store.LogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		slog.Info("Deactivating license", "key", key)

		license, err := engine.Deactivate(c.Request.Context(), key)
		if err != nil {
			respondError(c, err, "Failed to deactivate license")
			return
		}

		logAdminAction(c, logStore, "DEACTIVATE_LICENSE", "LICENSE", &license.ID, map[string]interface{}{"key": key})

		c.JSON(http.StatusOK, gin.H{"message": "License deactivated", "license": license})
	}
}

// DeactivateDeviceHandler handles DELETE /admin/licenses/:key/devices/:machineId
func DeactivateDeviceHandler(engine *service.LicenseEngine, logStore store.LogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		machineID := c.Param("machineId")
		slog.Info("Deactivating device", "key", key, "machine_id", machineID)

		if err := engine.DeactivateDevice(c.Request.Context(), key, machineID); err != nil {
			respondError(c, err, "Failed to deactivate device")
			return
		}

		logAdminAction(c, logStore, "DEACTIVATE_DEVICE", "LICENSE_ACTIVATION", nil, map[string]interface{}{
			"key":        key,
			"machine_id": machineID,
		})

		c.JSON(http.StatusOK, gin.H{"message": "Device deactivated"})
	}
}

// LicenseStatsHandler handles GET /admin/licenses/stats
func LicenseStatsHandler(engine *service.LicenseEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := engine.Statistics(c.Request.Context())
		if err != nil {
			respondError(c, err, "Failed to get license stats")
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func toPayload(v interface{}) map[string]interface{} {
	payload := map[string]interface{}{}
	dt, err := json.Marshal(v)
	if err != nil {
		return payload
	}
	_ = json.Unmarshal(dt, &payload)
	return payload
}
