package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macman/internal/models"
)

func newTestRelease(version string, build int) *models.Release {
	now := time.Now()
	return &models.Release{
		ID:          uuid.New(),
		Version:     version,
		BuildNumber: build,
		ReleaseType: models.ReleaseTypeNormal,
		Filename:    "MacMan-" + version + ".dmg",
		FileSize:    1024,
		Checksum:    "sha256:abc",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPostgresReleaseStore(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, "macman_test_releases")
	s := NewPostgresReleaseStore(pool)

	for _, r := range []*models.Release{
		newTestRelease("1.0.8", 10008),
		newTestRelease("1.0.9", 10009),
		newTestRelease("1.0.10", 10010),
	} {
		require.NoError(t, s.CreateRelease(ctx, r))
	}

	t.Run("Duplicate version", func(t *testing.T) {
		before, err := s.GetReleaseByVersion(ctx, "1.0.9")
		require.NoError(t, err)

		conflicting := newTestRelease("1.0.9", 19999)
		conflicting.Filename = "MacMan-rebuilt.dmg"
		conflicting.ReleaseType = models.ReleaseTypeBeta
		conflicting.ForceUpdate = true
		err = s.CreateRelease(ctx, conflicting)
		assert.ErrorIs(t, err, ErrDuplicate)

		after, err := s.GetReleaseByVersion(ctx, "1.0.9")
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
		assert.Equal(t, 10009, after.BuildNumber)
		assert.Equal(t, "MacMan-1.0.9.dmg", after.Filename)
		assert.Equal(t, models.ReleaseTypeNormal, after.ReleaseType)
		assert.False(t, after.ForceUpdate)
		assert.Equal(t, before.DownloadCount, after.DownloadCount)
	})

	t.Run("Latest after picks the highest build", func(t *testing.T) {
		r, err := s.GetLatestReleaseAfter(ctx, 10008)
		require.NoError(t, err)
		assert.Equal(t, "1.0.10", r.Version)

		_, err = s.GetLatestReleaseAfter(ctx, 10010)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Inactive releases are not offered", func(t *testing.T) {
		r, err := s.SetReleaseActive(ctx, "1.0.10", false)
		require.NoError(t, err)
		assert.False(t, r.IsActive)

		latest, err := s.GetLatestReleaseAfter(ctx, 10008)
		require.NoError(t, err)
		assert.Equal(t, "1.0.9", latest.Version)

		_, err = s.SetReleaseActive(ctx, "1.0.10", true)
		require.NoError(t, err)

		_, err = s.SetReleaseActive(ctx, "9.9.9", false)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Download counter", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := s.IncrementDownloadCount(ctx, "1.0.9")
			require.NoError(t, err)
		}
		r, err := s.GetReleaseByVersion(ctx, "1.0.9")
		require.NoError(t, err)
		assert.Equal(t, int64(3), r.DownloadCount)

		_, err = s.IncrementDownloadCount(ctx, "9.9.9")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("List releases by build desc", func(t *testing.T) {
		releases, total, err := s.ListReleases(ctx, models.PaginationParams{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, releases, 3)
		assert.Equal(t, "1.0.10", releases[0].Version)
		assert.Equal(t, "1.0.8", releases[2].Version)
	})

	t.Run("History closes the newest started row", func(t *testing.T) {
		target, err := s.GetReleaseByVersion(ctx, "1.0.10")
		require.NoError(t, err)

		older := &models.UpdateHistory{
			ID: uuid.New(), UpdateID: target.ID, UserID: "user-1", FromVersion: "1.0.8", ToVersion: "1.0.10",
			Platform: "darwin", Status: models.HistoryStatusStarted, CreatedAt: time.Now().Add(-time.Hour),
		}
		newer := &models.UpdateHistory{
			ID: uuid.New(), UpdateID: target.ID, UserID: "user-1", FromVersion: "1.0.9", ToVersion: "1.0.10",
			Platform: "darwin", Status: models.HistoryStatusStarted, CreatedAt: time.Now(),
		}
		require.NoError(t, s.CreateHistory(ctx, older))
		require.NoError(t, s.CreateHistory(ctx, newer))

		completedAt := time.Now()
		closed, err := s.CloseLatestHistory(ctx, "user-1", "1.0.10", models.HistoryStatusCompleted, nil, &completedAt)
		require.NoError(t, err)
		assert.True(t, closed)

		var status string
		require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM update_history WHERE id = $1`, newer.ID).Scan(&status))
		assert.Equal(t, "completed", status)
		require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM update_history WHERE id = $1`, older.ID).Scan(&status))
		assert.Equal(t, "started", status)

		msg := "disk full"
		closed, err = s.CloseLatestHistory(ctx, "user-1", "1.0.10", models.HistoryStatusFailed, &msg, nil)
		require.NoError(t, err)
		assert.True(t, closed)

		closed, err = s.CloseLatestHistory(ctx, "user-1", "1.0.10", models.HistoryStatusFailed, &msg, nil)
		require.NoError(t, err)
		assert.False(t, closed)

		closed, err = s.CloseLatestHistory(ctx, "nobody", "1.0.10", models.HistoryStatusCompleted, nil, &completedAt)
		require.NoError(t, err)
		assert.False(t, closed)
	})
}
