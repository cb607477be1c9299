package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"macman/internal/models"
	"macman/internal/store"
)

const maxKeyAttempts = 5

type CreateLicenseParams struct {
	Plan       models.Plan
	Email      *string
	MaxDevices *int
	ExpiresAt  *time.Time
}

type ValidateParams struct {
	LicenseKey string
	MachineID  string
	DeviceName *string
	OSVersion  *string
	AppVersion *string
}

// ValidationOutcome pairs the client-facing result with the license it
// resolved to, if any, so the caller can audit the decision.
type ValidationOutcome struct {
	Result  models.ValidationResult
	License *models.License
}

// LicenseEngine decides license usability and device-slot admission. All
// state lives in the injected stores.
type LicenseEngine struct {
	Licenses    store.LicenseStore
	Stats       store.StatsStore
	PurchaseURL string
	Now         func() time.Time
}

func NewLicenseEngine(licenses store.LicenseStore, stats store.StatsStore, purchaseURL string) *LicenseEngine {
	return &LicenseEngine{
		Licenses:    licenses,
		Stats:       stats,
		PurchaseURL: purchaseURL,
		Now:         time.Now,
	}
}

// Create issues a new active license for plan. A key collision reported by
// storage triggers a fresh key, up to maxKeyAttempts.
func (e *LicenseEngine) Create(ctx context.Context, params CreateLicenseParams) (*models.License, error) {
	maxDevices, ok := params.Plan.MaxDevices()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, params.Plan)
	}
	if params.MaxDevices != nil {
		if *params.MaxDevices <= 0 {
			return nil, fmt.Errorf("%w: max devices must be positive", ErrInvalidInput)
		}
		maxDevices = *params.MaxDevices
	}

	for attempt := 1; attempt <= maxKeyAttempts; attempt++ {
		key, err := GenerateLicenseKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate license key: %w", err)
		}

		now := e.Now()
		license := &models.License{
			ID:         uuid.New(),
			Key:        key,
			Email:      params.Email,
			Plan:       params.Plan,
			MaxDevices: maxDevices,
			IsActive:   true,
			ExpiresAt:  params.ExpiresAt,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		err = e.Licenses.CreateLicense(ctx, license)
		if err == nil {
			return license, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		slog.Warn("License key collision, regenerating", "attempt", attempt)
	}

	return nil, fmt.Errorf("failed to generate a unique license key after %d attempts", maxKeyAttempts)
}

// Validate runs the admission sequence. Business rejections are returned as
// results; only infrastructure failures and a missing machine id are errors.
func (e *LicenseEngine) Validate(ctx context.Context, params ValidateParams) (*ValidationOutcome, error) {
	if strings.TrimSpace(params.MachineID) == "" {
		return nil, fmt.Errorf("%w: machine id is required", ErrInvalidInput)
	}

	if !IsValidLicenseKeyFormat(params.LicenseKey) {
		return rejected(nil, models.ValidationErrorInvalidKey, "Invalid license key format"), nil
	}

	license, err := e.Licenses.GetLicenseByKey(ctx, params.LicenseKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return rejected(nil, models.ValidationErrorInvalidKey, "Invalid license key"), nil
		}
		return nil, err
	}

	now := e.Now()
	if !license.IsActive {
		return rejected(license, models.ValidationErrorInactive, "License has been deactivated"), nil
	}
	if license.Expired(now) {
		return rejected(license, models.ValidationErrorExpired, "License has expired"), nil
	}

	refreshed, err := e.Licenses.TouchActivation(ctx, license.ID, params.MachineID, params.OSVersion, params.AppVersion, now)
	if err != nil {
		return nil, err
	}
	if refreshed {
		if license.DeviceCount == 0 {
			// Bound by a concurrent first validation after the license was read.
			if license, err = e.Licenses.GetLicenseByKey(ctx, params.LicenseKey); err != nil {
				return nil, err
			}
		}
		return accepted(license, license.DeviceCount, "License is valid"), nil
	}

	if license.DeviceCount >= license.MaxDevices {
		return e.rebind(ctx, license, params, now)
	}

	activation := &models.LicenseActivation{
		ID:          uuid.New(),
		LicenseID:   license.ID,
		MachineID:   params.MachineID,
		DeviceName:  params.DeviceName,
		OSVersion:   params.OSVersion,
		AppVersion:  params.AppVersion,
		ActivatedAt: now,
		LastSeenAt:  now,
	}

	deviceCount, err := e.Licenses.ClaimDeviceSlot(ctx, activation)
	switch {
	case err == nil:
		slog.Info("Device activated", "license_key", license.Key, "machine_id", params.MachineID, "device_count", deviceCount)
		return accepted(license, deviceCount, "License activated on this device"), nil
	case errors.Is(err, store.ErrQuotaExceeded), errors.Is(err, store.ErrDuplicate):
		// A concurrent first validation from the same machine may hold the slot.
		return e.rebind(ctx, license, params, now)
	default:
		return nil, err
	}
}

// rebind settles a claim that lost to the quota or the active-pair index. The
// machine is accepted only if it now holds an active activation; the device
// count is re-read after the touch.
func (e *LicenseEngine) rebind(ctx context.Context, license *models.License, params ValidateParams, now time.Time) (*ValidationOutcome, error) {
	bound, err := e.Licenses.TouchActivation(ctx, license.ID, params.MachineID, params.OSVersion, params.AppVersion, now)
	if err != nil {
		return nil, err
	}
	if !bound {
		return e.quotaExceeded(license), nil
	}

	current, err := e.Licenses.GetLicenseByKey(ctx, params.LicenseKey)
	if err != nil {
		return nil, err
	}
	return accepted(current, current.DeviceCount, "License is valid"), nil
}

func (e *LicenseEngine) quotaExceeded(license *models.License) *ValidationOutcome {
	out := rejected(license, models.ValidationErrorMaxDevicesReached,
		fmt.Sprintf("Maximum number of devices reached (%d). Deactivate a device or upgrade your plan.", license.MaxDevices))
	out.Result.PurchaseURL = e.PurchaseURL
	return out
}

func accepted(license *models.License, deviceCount int, message string) *ValidationOutcome {
	return &ValidationOutcome{
		License: license,
		Result: models.ValidationResult{
			Valid:   true,
			Message: message,
			Data: &models.ValidationData{
				LicenseKey:  license.Key,
				Plan:        license.Plan,
				MaxDevices:  license.MaxDevices,
				DeviceCount: deviceCount,
				IsActive:    license.IsActive,
			},
		},
	}
}

func rejected(license *models.License, kind models.ValidationError, message string) *ValidationOutcome {
	return &ValidationOutcome{
		License: license,
		Result: models.ValidationResult{
			Valid:     false,
			Message:   message,
			ErrorType: kind,
		},
	}
}

// Deactivate soft-deactivates the license. Existing activations are kept.
func (e *LicenseEngine) Deactivate(ctx context.Context, key string) (*models.License, error) {
	return e.Licenses.SetLicenseActive(ctx, key, false)
}

// DeactivateDevice frees the slot held by machineID. store.ErrNotFound covers
// both an unknown license and a machine without an active activation.
func (e *LicenseEngine) DeactivateDevice(ctx context.Context, key, machineID string) error {
	if machineID == "" {
		return fmt.Errorf("%w: machine id is required", ErrInvalidInput)
	}
	return e.Licenses.DeactivateActivation(ctx, key, machineID, e.Now())
}

func (e *LicenseEngine) ListLicenses(ctx context.Context, pagination models.PaginationParams) ([]models.License, int, error) {
	return e.Licenses.ListLicenses(ctx, pagination)
}

func (e *LicenseEngine) GetLicense(ctx context.Context, key string) (*models.LicenseDetail, error) {
	license, err := e.Licenses.GetLicenseByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	devices, err := e.Licenses.ListActivations(ctx, license.ID, true)
	if err != nil {
		return nil, err
	}
	payments, err := e.Licenses.ListPayments(ctx, license.ID)
	if err != nil {
		return nil, err
	}

	if devices == nil {
		devices = []models.LicenseActivation{}
	}
	if payments == nil {
		payments = []models.Payment{}
	}

	return &models.LicenseDetail{License: *license, Devices: devices, Payments: payments}, nil
}

func (e *LicenseEngine) Statistics(ctx context.Context) (*models.LicenseStats, error) {
	return e.Stats.GetLicenseStats(ctx)
}
