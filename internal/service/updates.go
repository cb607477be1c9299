package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"macman/internal/models"
	"macman/internal/store"
)

const (
	DefaultPlatform = "darwin"

	recentUpdatesWindow = 7 * 24 * time.Hour
)

type CreateReleaseParams struct {
	Version      string
	BuildNumber  int
	ReleaseType  models.ReleaseType
	Filename     string
	FileSize     int64
	Checksum     string
	ReleaseNotes string
	ForceUpdate  bool
}

type CheckForUpdateParams struct {
	Version    string
	UserID     string
	Platform   string
	AppVersion *string
}

// UpdateResolver decides whether a client should be offered a newer release.
type UpdateResolver struct {
	Releases         store.ReleaseStore
	Stats            store.StatsStore
	DownloadBasePath string
	Now              func() time.Time
}

func NewUpdateResolver(releases store.ReleaseStore, stats store.StatsStore, downloadBasePath string) *UpdateResolver {
	return &UpdateResolver{
		Releases:         releases,
		Stats:            stats,
		DownloadBasePath: strings.TrimSuffix(downloadBasePath, "/"),
		Now:              time.Now,
	}
}

// CreateRelease publishes a release. The supplied build number is trusted;
// when it is zero it is derived from the version string.
// Returns store.ErrDuplicate when the version already exists.
func (r *UpdateResolver) CreateRelease(ctx context.Context, params CreateReleaseParams) (*models.Release, error) {
	if strings.TrimSpace(params.Version) == "" || params.Filename == "" {
		return nil, fmt.Errorf("%w: version and filename are required", ErrInvalidInput)
	}
	if params.FileSize < 0 {
		return nil, fmt.Errorf("%w: file size must not be negative", ErrInvalidInput)
	}

	releaseType := params.ReleaseType
	if releaseType == "" {
		releaseType = models.ReleaseTypeNormal
	}
	if !releaseType.Valid() {
		return nil, fmt.Errorf("%w: unknown release type %q", ErrInvalidInput, releaseType)
	}

	buildNumber := params.BuildNumber
	if buildNumber < 0 || buildNumber > MaxBuildNumber {
		return nil, fmt.Errorf("%w: build number must be between 0 and %d", ErrInvalidInput, MaxBuildNumber)
	}
	if buildNumber == 0 {
		derived, err := VersionToBuildNumber(params.Version)
		if err != nil {
			return nil, err
		}
		buildNumber = derived
	}

	now := r.Now()
	release := &models.Release{
		ID:           uuid.New(),
		Version:      params.Version,
		BuildNumber:  buildNumber,
		ReleaseType:  releaseType,
		Filename:     params.Filename,
		FileSize:     params.FileSize,
		Checksum:     params.Checksum,
		ReleaseNotes: params.ReleaseNotes,
		ForceUpdate:  params.ForceUpdate,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.Releases.CreateRelease(ctx, release); err != nil {
		return nil, err
	}
	return release, nil
}

// CheckForUpdate offers the newest active release whose build number exceeds
// the reported version's, never an intermediate one, and records a started
// history row for it.
func (r *UpdateResolver) CheckForUpdate(ctx context.Context, params CheckForUpdateParams) (*models.UpdateCheckResult, error) {
	if params.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	platform := params.Platform
	if platform == "" {
		platform = DefaultPlatform
	}

	current, err := VersionToBuildNumber(params.Version)
	if err != nil {
		return nil, err
	}

	release, err := r.Releases.GetLatestReleaseAfter(ctx, current)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &models.UpdateCheckResult{
				UpdateAvailable: false,
				Message:         "You are running the latest version",
			}, nil
		}
		return nil, err
	}

	history := &models.UpdateHistory{
		ID:          uuid.New(),
		UpdateID:    release.ID,
		UserID:      params.UserID,
		FromVersion: params.Version,
		ToVersion:   release.Version,
		Platform:    platform,
		Status:      models.HistoryStatusStarted,
		CreatedAt:   r.Now(),
	}
	if err := r.Releases.CreateHistory(ctx, history); err != nil {
		return nil, err
	}

	return &models.UpdateCheckResult{
		UpdateAvailable: true,
		Update: &models.UpdateInfo{
			Version:      release.Version,
			BuildNumber:  release.BuildNumber,
			ReleaseType:  release.ReleaseType,
			DownloadURL:  r.DownloadPath(release.Version),
			FileSize:     release.FileSize,
			Checksum:     release.Checksum,
			ReleaseNotes: release.ReleaseNotes,
			ForceUpdate:  release.ForceUpdate,
		},
	}, nil
}

func (r *UpdateResolver) DownloadPath(version string) string {
	return r.DownloadBasePath + "/" + url.PathEscape(version)
}

// RecordHistoryStatus closes the newest started history row for the pair.
// A report with no matching row is accepted and ignored.
func (r *UpdateResolver) RecordHistoryStatus(ctx context.Context, userID, targetVersion string, status models.HistoryStatus, errorMessage *string) error {
	if userID == "" || targetVersion == "" {
		return fmt.Errorf("%w: user id and target version are required", ErrInvalidInput)
	}

	var completedAt *time.Time
	switch status {
	case models.HistoryStatusCompleted:
		now := r.Now()
		completedAt = &now
	case models.HistoryStatusFailed:
	default:
		return fmt.Errorf("%w: status must be completed or failed", ErrInvalidInput)
	}

	closed, err := r.Releases.CloseLatestHistory(ctx, userID, targetVersion, status, errorMessage, completedAt)
	if err != nil {
		return err
	}
	if !closed {
		slog.Debug("No started update to close", "user_id", userID, "target_version", targetVersion, "status", status)
	}
	return nil
}

// DownloadArtifact counts a download and returns the artifact metadata.
// Streaming the file is left to the transport.
func (r *UpdateResolver) DownloadArtifact(ctx context.Context, version string) (*models.Release, error) {
	return r.Releases.IncrementDownloadCount(ctx, version)
}

func (r *UpdateResolver) GetRelease(ctx context.Context, version string) (*models.Release, error) {
	return r.Releases.GetReleaseByVersion(ctx, version)
}

func (r *UpdateResolver) ListReleases(ctx context.Context, pagination models.PaginationParams) ([]models.Release, int, error) {
	return r.Releases.ListReleases(ctx, pagination)
}

func (r *UpdateResolver) DeactivateRelease(ctx context.Context, version string) (*models.Release, error) {
	return r.Releases.SetReleaseActive(ctx, version, false)
}

func (r *UpdateResolver) Statistics(ctx context.Context) (*models.UpdateStats, error) {
	return r.Stats.GetUpdateStats(ctx, r.Now().Add(-recentUpdatesWindow))
}
