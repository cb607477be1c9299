package api

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"macman/internal/config"
	"macman/internal/database"
	"macman/internal/metrics"
	"macman/internal/models"
	"macman/internal/service"
	"macman/internal/store"
)

func TestLicenseLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	gin.SetMode(gin.TestMode)

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("macman_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate postgres container: %s", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pubKey, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cfg := config.NewDefaultConfig()
	cfg.DatabaseURL = connStr
	cfg.AdminSecret = "test-secret"
	cfg.ResponseSigningPrivateKey = base64.StdEncoding.EncodeToString(privKey)
	cfg.ResponseSigningPublicKey = base64.StdEncoding.EncodeToString(pubKey)
	cfg.RateLimitAdmin.Enabled = false
	cfg.RateLimitCheck.Enabled = false
	cfg.UpdatesDir = t.TempDir()

	absPath, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(cfg.DatabaseURL, absPath))

	pool, err := database.New(ctx, cfg.DatabaseURL)
	require.NoError(t, err)
	defer pool.Close()

	ls := store.NewPostgresLicenseStore(pool)
	rs := store.NewPostgresReleaseStore(pool)
	ss := store.NewPostgresStatsStore(pool)
	logs := store.NewPostgresLogStore(pool)

	engine := service.NewLicenseEngine(ls, ss, cfg.PurchaseURL)
	resolver := service.NewUpdateResolver(rs, ss, "/api/updates/download")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "integration-admin",
		"iss": "macman-test",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(cfg.AdminSecret))
	require.NoError(t, err)

	s := &testServer{
		Server:     NewServer(cfg, pool, engine, resolver, logs, metrics.New()),
		publicKey:  pubKey,
		authHeader: "Bearer " + tokenString,
	}

	validate := func(key, machineID string) models.ValidationResult {
		w := s.do("POST", "/api/license/validate", gin.H{
			"licenseKey": key,
			"machineId":  machineID,
			"deviceName": "Test Mac",
			"osVersion":  "14.5",
			"appVersion": "1.0.8",
		}, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		s.assertSigned(t, w)
		return decode[models.ValidationResult](t, w)
	}

	t.Log("Step 1: Create license")
	var licenseKey string
	{
		w := s.do("POST", "/admin/licenses", gin.H{"plan": "2 Devices", "email": "buyer@example.com", "duration": "1y"}, true)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		license := decode[models.License](t, w)
		assert.True(t, service.IsValidLicenseKeyFormat(license.Key))
		assert.Equal(t, 2, license.MaxDevices)
		require.NotNil(t, license.ExpiresAt)
		licenseKey = license.Key
	}

	t.Log("Step 2: Activate two machines")
	{
		res := validate(licenseKey, "mac-1")
		require.True(t, res.Valid, res.Message)
		assert.Equal(t, 1, res.Data.DeviceCount)
		assert.NotEmpty(t, res.Token)

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(res.Token, claims, func(*jwt.Token) (interface{}, error) {
			return pubKey, nil
		}, jwt.WithIssuer(service.TokenIssuer))
		require.NoError(t, err)
		assert.Equal(t, "mac-1", claims["machine_id"])

		res = validate(licenseKey, "mac-2")
		require.True(t, res.Valid, res.Message)
		assert.Equal(t, 2, res.Data.DeviceCount)

		// Revalidating a known machine does not use a slot.
		res = validate(licenseKey, "mac-1")
		require.True(t, res.Valid)
		assert.Equal(t, 2, res.Data.DeviceCount)
	}

	t.Log("Step 3: Third machine is over quota")
	{
		res := validate(licenseKey, "mac-3")
		assert.False(t, res.Valid)
		assert.Equal(t, models.ValidationErrorMaxDevicesReached, res.ErrorType)
		assert.Equal(t, cfg.PurchaseURL, res.PurchaseURL)
		assert.Empty(t, res.Token)
	}

	t.Log("Step 4: Free a slot and retry")
	{
		w := s.do("DELETE", "/admin/licenses/"+licenseKey+"/devices/mac-2", nil, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = s.do("DELETE", "/admin/licenses/"+licenseKey+"/devices/mac-2", nil, true)
		assert.Equal(t, http.StatusNotFound, w.Code)

		res := validate(licenseKey, "mac-3")
		require.True(t, res.Valid, res.Message)
		assert.Equal(t, 2, res.Data.DeviceCount)

		w = s.do("GET", "/admin/licenses/"+licenseKey, nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		detail := decode[models.LicenseDetail](t, w)
		assert.Equal(t, 2, detail.DeviceCount)
		machines := []string{}
		for _, d := range detail.Devices {
			if d.IsActive {
				machines = append(machines, d.MachineID)
			}
		}
		assert.ElementsMatch(t, []string{"mac-1", "mac-3"}, machines)
	}

	t.Log("Step 5: Deactivate license")
	{
		w := s.do("POST", "/admin/licenses/"+licenseKey+"/deactivate", nil, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		res := validate(licenseKey, "mac-1")
		assert.False(t, res.Valid)
		assert.Equal(t, models.ValidationErrorInactive, res.ErrorType)

		res = validate("MACMAN-ZZZZZ-ZZZZZ-ZZZZZ", "mac-1")
		assert.Equal(t, models.ValidationErrorInvalidKey, res.ErrorType)
	}

	t.Log("Step 6: Publish releases")
	{
		for _, r := range []gin.H{
			{"version": "1.0.9", "filename": "MacMan-1.0.9.dmg", "file_size": 1024},
			{"version": "1.0.10", "filename": "MacMan-1.0.10.dmg", "file_size": 2048, "checksum": "sha256:abc"},
		} {
			w := s.do("POST", "/admin/updates", r, true)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		}

		w := s.do("POST", "/admin/updates", gin.H{"version": "1.0.10", "filename": "dup.dmg"}, true)
		assert.Equal(t, http.StatusConflict, w.Code)

		require.NoError(t, os.WriteFile(filepath.Join(cfg.UpdatesDir, "MacMan-1.0.10.dmg"), []byte("dmg-bytes"), 0o644))
	}

	t.Log("Step 7: Check, download, report")
	{
		w := s.do("POST", "/api/updates/check", gin.H{"version": "1.0.8", "platform": "darwin", "userId": "user-1"}, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		s.assertSigned(t, w)
		check := decode[models.UpdateCheckResult](t, w)
		require.True(t, check.UpdateAvailable)
		assert.Equal(t, "1.0.10", check.Update.Version)
		assert.Equal(t, "/api/updates/download/1.0.10", check.Update.DownloadURL)

		w = s.do("GET", check.Update.DownloadURL, nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "dmg-bytes", w.Body.String())

		w = s.do("GET", "/api/updates/download/1.0.9", nil, false)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = s.do("POST", "/api/updates/history", gin.H{"userId": "user-1", "targetVersion": "1.0.10", "status": "completed"}, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = s.do("POST", "/api/updates/check", gin.H{"version": "1.0.10", "userId": "user-1"}, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decode[models.UpdateCheckResult](t, w).UpdateAvailable)
	}

	t.Log("Step 8: Dashboard and logs")
	{
		w := s.do("GET", "/admin/stats", nil, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		stats := decode[models.DashboardStats](t, w)
		assert.Equal(t, 1, stats.Licenses.TotalLicenses)
		assert.Equal(t, 0, stats.Licenses.ActiveLicenses)
		assert.Equal(t, 2, stats.Updates.TotalReleases)
		assert.Equal(t, int64(1), stats.Updates.TotalDownloads)

		require.Eventually(t, func() bool {
			w := s.do("GET", "/admin/logs/validations?license_key="+licenseKey, nil, true)
			if w.Code != http.StatusOK {
				return false
			}
			var page models.PaginatedList[models.LicenseCheckLog]
			if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
				return false
			}
			return page.TotalCount >= 6
		}, 5*time.Second, 50*time.Millisecond)

		require.Eventually(t, func() bool {
			w := s.do("GET", "/admin/logs/admin-actions", nil, true)
			if w.Code != http.StatusOK {
				return false
			}
			var page models.PaginatedList[models.AdminLog]
			if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil || page.TotalCount < 5 {
				return false
			}
			for _, entry := range page.Items {
				if entry.Actor == nil || *entry.Actor != "integration-admin" {
					return false
				}
			}
			return true
		}, 5*time.Second, 50*time.Millisecond)
	}
}
