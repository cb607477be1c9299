package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"macman/internal/models"
)

type ReleaseStore interface {
	CreateRelease(ctx context.Context, release *models.Release) error
	GetReleaseByVersion(ctx context.Context, version string) (*models.Release, error)
	// GetLatestReleaseAfter returns the active release with the highest build
	// number strictly greater than buildNumber, or ErrNotFound.
	GetLatestReleaseAfter(ctx context.Context, buildNumber int) (*models.Release, error)
	ListReleases(ctx context.Context, pagination models.PaginationParams) ([]models.Release, int, error)
	SetReleaseActive(ctx context.Context, version string, active bool) (*models.Release, error)
	IncrementDownloadCount(ctx context.Context, version string) (*models.Release, error)

	CreateHistory(ctx context.Context, history *models.UpdateHistory) error
	// CloseLatestHistory closes the newest started history row for
	// (userID, toVersion). It reports false when no such row exists.
	CloseLatestHistory(ctx context.Context, userID, toVersion string, status models.HistoryStatus, errorMessage *string, completedAt *time.Time) (bool, error)
}

type PostgresReleaseStore struct {
	DB *pgxpool.Pool
}

func NewPostgresReleaseStore(db *pgxpool.Pool) *PostgresReleaseStore {
	return &PostgresReleaseStore{DB: db}
}

const releaseColumns = `id, version, build_number, release_type, filename, file_size, checksum, release_notes,
	force_update, is_active, download_count, created_at, updated_at`

func scanRelease(row pgx.Row) (*models.Release, error) {
	var r models.Release
	err := row.Scan(
		&r.ID,
		&r.Version,
		&r.BuildNumber,
		&r.ReleaseType,
		&r.Filename,
		&r.FileSize,
		&r.Checksum,
		&r.ReleaseNotes,
		&r.ForceUpdate,
		&r.IsActive,
		&r.DownloadCount,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresReleaseStore) CreateRelease(ctx context.Context, release *models.Release) error {
	query := `
		INSERT INTO updates (
			id, version, build_number, release_type, filename, file_size, checksum, release_notes,
			force_update, is_active, download_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`
	_, err := s.DB.Exec(ctx, query,
		release.ID,
		release.Version,
		release.BuildNumber,
		release.ReleaseType,
		release.Filename,
		release.FileSize,
		release.Checksum,
		release.ReleaseNotes,
		release.ForceUpdate,
		release.IsActive,
		release.DownloadCount,
		release.CreatedAt,
		release.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: release version %s", ErrDuplicate, release.Version)
		}
		return fmt.Errorf("failed to create release: %w", err)
	}
	return nil
}

func (s *PostgresReleaseStore) GetReleaseByVersion(ctx context.Context, version string) (*models.Release, error) {
	r, err := scanRelease(s.DB.QueryRow(ctx, `SELECT `+releaseColumns+` FROM updates WHERE version = $1`, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: release", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get release: %w", err)
	}
	return r, nil
}

func (s *PostgresReleaseStore) GetLatestReleaseAfter(ctx context.Context, buildNumber int) (*models.Release, error) {
	query := `
		SELECT ` + releaseColumns + `
		FROM updates
		WHERE is_active AND build_number > $1
		ORDER BY build_number DESC
		LIMIT 1
	`
	r, err := scanRelease(s.DB.QueryRow(ctx, query, buildNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: newer release", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find newer release: %w", err)
	}
	return r, nil
}

func (s *PostgresReleaseStore) ListReleases(ctx context.Context, pagination models.PaginationParams) ([]models.Release, int, error) {
	var totalCount int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM updates`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count of releases: %w", err)
	}

	limit, offset := pagination.LimitOffset()
	rows, err := s.DB.Query(ctx, `SELECT `+releaseColumns+` FROM updates ORDER BY build_number DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var releases []models.Release
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return releases, totalCount, nil
}

func (s *PostgresReleaseStore) SetReleaseActive(ctx context.Context, version string, active bool) (*models.Release, error) {
	query := `
		UPDATE updates SET is_active = $2, updated_at = NOW()
		WHERE version = $1
		RETURNING ` + releaseColumns
	r, err := scanRelease(s.DB.QueryRow(ctx, query, version, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: release", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update release: %w", err)
	}
	return r, nil
}

func (s *PostgresReleaseStore) IncrementDownloadCount(ctx context.Context, version string) (*models.Release, error) {
	query := `
		UPDATE updates SET download_count = download_count + 1
		WHERE version = $1
		RETURNING ` + releaseColumns
	r, err := scanRelease(s.DB.QueryRow(ctx, query, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: release", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to count download: %w", err)
	}
	return r, nil
}

func (s *PostgresReleaseStore) CreateHistory(ctx context.Context, history *models.UpdateHistory) error {
	query := `
		INSERT INTO update_history (id, update_id, user_id, from_version, to_version, platform, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.DB.Exec(ctx, query,
		history.ID,
		history.UpdateID,
		history.UserID,
		history.FromVersion,
		history.ToVersion,
		history.Platform,
		history.Status,
		history.ErrorMessage,
		history.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create update history: %w", err)
	}
	return nil
}

func (s *PostgresReleaseStore) CloseLatestHistory(ctx context.Context, userID, toVersion string, status models.HistoryStatus, errorMessage *string, completedAt *time.Time) (bool, error) {
	query := `
		UPDATE update_history SET status = $3, error_message = $4, completed_at = $5
		WHERE status = 'started' AND id = (
			SELECT id FROM update_history
			WHERE user_id = $1 AND to_version = $2 AND status = 'started'
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE
		)
	`
	tag, err := s.DB.Exec(ctx, query, userID, toVersion, status, errorMessage, completedAt)
	if err != nil {
		return false, fmt.Errorf("failed to close update history: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
