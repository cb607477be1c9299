package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"macman/internal/models"
)

type StatsStore interface {
	GetLicenseStats(ctx context.Context) (*models.LicenseStats, error)
	GetUpdateStats(ctx context.Context, since time.Time) (*models.UpdateStats, error)
}

type PostgresStatsStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStatsStore(db *pgxpool.Pool) *PostgresStatsStore {
	return &PostgresStatsStore{DB: db}
}

func (s *PostgresStatsStore) GetLicenseStats(ctx context.Context) (*models.LicenseStats, error) {
	stats := &models.LicenseStats{ByPlan: map[models.Plan]int{}}

	// 1. Totals
	err := s.DB.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE is_active)
		FROM licenses
	`).Scan(&stats.TotalLicenses, &stats.ActiveLicenses)
	if err != nil {
		return nil, fmt.Errorf("failed to count licenses: %w", err)
	}

	// 2. Active activations
	err = s.DB.QueryRow(ctx, `SELECT count(*) FROM license_activations WHERE is_active`).Scan(&stats.ActiveActivations)
	if err != nil {
		return nil, fmt.Errorf("failed to count activations: %w", err)
	}

	// 3. Breakdown by plan
	rows, err := s.DB.Query(ctx, `SELECT plan, count(*) FROM licenses GROUP BY plan`)
	if err != nil {
		return nil, fmt.Errorf("failed to count licenses by plan: %w", err)
	}
	defer rows.Close()

	for _, p := range models.Plans {
		stats.ByPlan[p] = 0
	}
	for rows.Next() {
		var plan models.Plan
		var count int
		if err := rows.Scan(&plan, &count); err != nil {
			return nil, fmt.Errorf("failed to scan plan count: %w", err)
		}
		stats.ByPlan[plan] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return stats, nil
}

func (s *PostgresStatsStore) GetUpdateStats(ctx context.Context, since time.Time) (*models.UpdateStats, error) {
	stats := &models.UpdateStats{}

	err := s.DB.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE is_active), COALESCE(sum(download_count), 0)::bigint
		FROM updates
	`).Scan(&stats.TotalReleases, &stats.ActiveReleases, &stats.TotalDownloads)
	if err != nil {
		return nil, fmt.Errorf("failed to count releases: %w", err)
	}

	err = s.DB.QueryRow(ctx, `SELECT count(*) FROM update_history WHERE created_at >= $1`, since).Scan(&stats.RecentUpdates)
	if err != nil {
		return nil, fmt.Errorf("failed to count update history: %w", err)
	}

	return stats, nil
}
