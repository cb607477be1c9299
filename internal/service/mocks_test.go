package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"macman/internal/models"
)

type MockLicenseStore struct {
	mock.Mock
}

func (m *MockLicenseStore) CreateLicense(ctx context.Context, license *models.License) error {
	args := m.Called(ctx, license)
	return args.Error(0)
}

func (m *MockLicenseStore) GetLicenseByKey(ctx context.Context, key string) (*models.License, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.License), args.Error(1)
}

func (m *MockLicenseStore) SetLicenseActive(ctx context.Context, key string, active bool) (*models.License, error) {
	args := m.Called(ctx, key, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.License), args.Error(1)
}

func (m *MockLicenseStore) ListLicenses(ctx context.Context, pagination models.PaginationParams) ([]models.License, int, error) {
	args := m.Called(ctx, pagination)
	return args.Get(0).([]models.License), args.Int(1), args.Error(2)
}

func (m *MockLicenseStore) ListActivations(ctx context.Context, licenseID uuid.UUID, activeOnly bool) ([]models.LicenseActivation, error) {
	args := m.Called(ctx, licenseID, activeOnly)
	return args.Get(0).([]models.LicenseActivation), args.Error(1)
}

func (m *MockLicenseStore) ListPayments(ctx context.Context, licenseID uuid.UUID) ([]models.Payment, error) {
	args := m.Called(ctx, licenseID)
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockLicenseStore) TouchActivation(ctx context.Context, licenseID uuid.UUID, machineID string, osVersion, appVersion *string, seenAt time.Time) (bool, error) {
	args := m.Called(ctx, licenseID, machineID, osVersion, appVersion, seenAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockLicenseStore) ClaimDeviceSlot(ctx context.Context, activation *models.LicenseActivation) (int, error) {
	args := m.Called(ctx, activation)
	return args.Int(0), args.Error(1)
}

func (m *MockLicenseStore) DeactivateActivation(ctx context.Context, licenseKey, machineID string, at time.Time) error {
	args := m.Called(ctx, licenseKey, machineID, at)
	return args.Error(0)
}

type MockReleaseStore struct {
	mock.Mock
}

func (m *MockReleaseStore) CreateRelease(ctx context.Context, release *models.Release) error {
	args := m.Called(ctx, release)
	return args.Error(0)
}

func (m *MockReleaseStore) GetReleaseByVersion(ctx context.Context, version string) (*models.Release, error) {
	args := m.Called(ctx, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Release), args.Error(1)
}

func (m *MockReleaseStore) GetLatestReleaseAfter(ctx context.Context, buildNumber int) (*models.Release, error) {
	args := m.Called(ctx, buildNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Release), args.Error(1)
}

func (m *MockReleaseStore) ListReleases(ctx context.Context, pagination models.PaginationParams) ([]models.Release, int, error) {
	args := m.Called(ctx, pagination)
	return args.Get(0).([]models.Release), args.Int(1), args.Error(2)
}

func (m *MockReleaseStore) SetReleaseActive(ctx context.Context, version string, active bool) (*models.Release, error) {
	args := m.Called(ctx, version, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Release), args.Error(1)
}

func (m *MockReleaseStore) IncrementDownloadCount(ctx context.Context, version string) (*models.Release, error) {
	args := m.Called(ctx, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Release), args.Error(1)
}

func (m *MockReleaseStore) CreateHistory(ctx context.Context, history *models.UpdateHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockReleaseStore) CloseLatestHistory(ctx context.Context, userID, toVersion string, status models.HistoryStatus, errorMessage *string, completedAt *time.Time) (bool, error) {
	args := m.Called(ctx, userID, toVersion, status, errorMessage, completedAt)
	return args.Bool(0), args.Error(1)
}

type MockStatsStore struct {
	mock.Mock
}

func (m *MockStatsStore) GetLicenseStats(ctx context.Context) (*models.LicenseStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LicenseStats), args.Error(1)
}

func (m *MockStatsStore) GetUpdateStats(ctx context.Context, since time.Time) (*models.UpdateStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UpdateStats), args.Error(1)
}

type MockLogStore struct {
	mock.Mock
}

func (m *MockLogStore) CreateLicenseCheckLog(ctx context.Context, log *models.LicenseCheckLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockLogStore) CreateAdminLog(ctx context.Context, log *models.AdminLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockLogStore) ListLicenseCheckLogs(ctx context.Context, licenseKey string, statusCode *int, pagination models.PaginationParams) ([]models.LicenseCheckLog, int, error) {
	args := m.Called(ctx, licenseKey, statusCode, pagination)
	return args.Get(0).([]models.LicenseCheckLog), args.Int(1), args.Error(2)
}

func (m *MockLogStore) ListAdminLogs(ctx context.Context, pagination models.PaginationParams) ([]models.AdminLog, int, error) {
	args := m.Called(ctx, pagination)
	return args.Get(0).([]models.AdminLog), args.Int(1), args.Error(2)
}
