package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"macman/internal/models"
)

type LicenseStore interface {
	CreateLicense(ctx context.Context, license *models.License) error
	GetLicenseByKey(ctx context.Context, key string) (*models.License, error)
	SetLicenseActive(ctx context.Context, key string, active bool) (*models.License, error)
	ListLicenses(ctx context.Context, pagination models.PaginationParams) ([]models.License, int, error)
	ListActivations(ctx context.Context, licenseID uuid.UUID, activeOnly bool) ([]models.LicenseActivation, error)
	ListPayments(ctx context.Context, licenseID uuid.UUID) ([]models.Payment, error)

	// TouchActivation refreshes the active activation of (licenseID, machineID).
	// It reports false when no active activation exists.
	TouchActivation(ctx context.Context, licenseID uuid.UUID, machineID string, osVersion, appVersion *string, seenAt time.Time) (bool, error)

	// ClaimDeviceSlot increments the license device count and inserts the
	// activation in one transaction, only while the count is below the quota.
	// It returns the new device count, ErrQuotaExceeded when the license is
	// full, or ErrDuplicate when the machine already holds an active slot.
	ClaimDeviceSlot(ctx context.Context, activation *models.LicenseActivation) (int, error)

	// DeactivateActivation releases the active slot held by machineID on the
	// license identified by licenseKey. Returns ErrNotFound when there is none.
	DeactivateActivation(ctx context.Context, licenseKey, machineID string, at time.Time) error
}

type PostgresLicenseStore struct {
	DB *pgxpool.Pool
}

func NewPostgresLicenseStore(db *pgxpool.Pool) *PostgresLicenseStore {
	return &PostgresLicenseStore{DB: db}
}

const licenseColumns = `id, key, email, plan, max_devices, device_count, is_active, expires_at, activated_at, created_at, updated_at`

func scanLicense(row pgx.Row) (*models.License, error) {
	var l models.License
	err := row.Scan(
		&l.ID,
		&l.Key,
		&l.Email,
		&l.Plan,
		&l.MaxDevices,
		&l.DeviceCount,
		&l.IsActive,
		&l.ExpiresAt,
		&l.ActivatedAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresLicenseStore) CreateLicense(ctx context.Context, license *models.License) error {
	query := `
		INSERT INTO licenses (
			id, key, email, plan, max_devices, device_count, is_active, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`
	_, err := s.DB.Exec(ctx, query,
		license.ID,
		license.Key,
		license.Email,
		license.Plan,
		license.MaxDevices,
		license.DeviceCount,
		license.IsActive,
		license.ExpiresAt,
		license.CreatedAt,
		license.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: license key", ErrDuplicate)
		}
		return fmt.Errorf("failed to create license: %w", err)
	}
	return nil
}

func (s *PostgresLicenseStore) GetLicenseByKey(ctx context.Context, key string) (*models.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE key = $1`
	l, err := scanLicense(s.DB.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: license", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get license: %w", err)
	}
	return l, nil
}

func (s *PostgresLicenseStore) SetLicenseActive(ctx context.Context, key string, active bool) (*models.License, error) {
	query := `
		UPDATE licenses SET is_active = $2, updated_at = NOW()
		WHERE key = $1
		RETURNING ` + licenseColumns
	l, err := scanLicense(s.DB.QueryRow(ctx, query, key, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: license", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update license: %w", err)
	}
	return l, nil
}

func (s *PostgresLicenseStore) ListLicenses(ctx context.Context, pagination models.PaginationParams) ([]models.License, int, error) {
	var totalCount int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM licenses`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count of licenses: %w", err)
	}

	limit, offset := pagination.LimitOffset()
	query := `SELECT ` + licenseColumns + ` FROM licenses ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.DB.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []models.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating licenses: %w", err)
	}

	return licenses, totalCount, nil
}

func (s *PostgresLicenseStore) ListActivations(ctx context.Context, licenseID uuid.UUID, activeOnly bool) ([]models.LicenseActivation, error) {
	query := `
		SELECT id, license_id, machine_id, device_name, os_version, app_version,
			is_active, activated_at, last_seen_at, deactivated_at
		FROM license_activations
		WHERE license_id = $1
	`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY activated_at DESC`

	rows, err := s.DB.Query(ctx, query, licenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	defer rows.Close()

	var activations []models.LicenseActivation
	for rows.Next() {
		var a models.LicenseActivation
		if err := rows.Scan(
			&a.ID,
			&a.LicenseID,
			&a.MachineID,
			&a.DeviceName,
			&a.OSVersion,
			&a.AppVersion,
			&a.IsActive,
			&a.ActivatedAt,
			&a.LastSeenAt,
			&a.DeactivatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}
		activations = append(activations, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activations: %w", err)
	}

	return activations, nil
}

func (s *PostgresLicenseStore) ListPayments(ctx context.Context, licenseID uuid.UUID) ([]models.Payment, error) {
	query := `
		SELECT id, license_id, provider, provider_ref, amount_cents, currency, status, created_at
		FROM payments
		WHERE license_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.DB.Query(ctx, query, licenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.LicenseID, &p.Provider, &p.ProviderRef, &p.AmountCents, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

func (s *PostgresLicenseStore) TouchActivation(ctx context.Context, licenseID uuid.UUID, machineID string, osVersion, appVersion *string, seenAt time.Time) (bool, error) {
	query := `
		UPDATE license_activations SET
			last_seen_at = $3,
			os_version = COALESCE($4, os_version),
			app_version = COALESCE($5, app_version)
		WHERE license_id = $1 AND machine_id = $2 AND is_active
	`
	tag, err := s.DB.Exec(ctx, query, licenseID, machineID, seenAt, osVersion, appVersion)
	if err != nil {
		return false, fmt.Errorf("failed to refresh activation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresLicenseStore) ClaimDeviceSlot(ctx context.Context, activation *models.LicenseActivation) (int, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Concurrent claims on the same license serialize on this row update and
	// re-check the predicate against the committed count.
	var deviceCount int
	err = tx.QueryRow(ctx, `
		UPDATE licenses SET
			device_count = device_count + 1,
			activated_at = COALESCE(activated_at, $2),
			updated_at = $2
		WHERE id = $1 AND device_count < max_devices
		RETURNING device_count
	`, activation.LicenseID, activation.ActivatedAt).Scan(&deviceCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuotaExceeded
		}
		return 0, fmt.Errorf("failed to claim device slot: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO license_activations (
			id, license_id, machine_id, device_name, os_version, app_version, is_active, activated_at, last_seen_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, TRUE, $7, $8
		)
	`,
		activation.ID,
		activation.LicenseID,
		activation.MachineID,
		activation.DeviceName,
		activation.OSVersion,
		activation.AppVersion,
		activation.ActivatedAt,
		activation.LastSeenAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: active activation", ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to create activation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	activation.IsActive = true
	return deviceCount, nil
}

func (s *PostgresLicenseStore) DeactivateActivation(ctx context.Context, licenseKey, machineID string, at time.Time) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var licenseID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE license_activations a SET is_active = FALSE, deactivated_at = $3
		FROM licenses l
		WHERE a.license_id = l.id AND l.key = $1 AND a.machine_id = $2 AND a.is_active
		RETURNING a.license_id
	`, licenseKey, machineID, at).Scan(&licenseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: active device", ErrNotFound)
		}
		return fmt.Errorf("failed to deactivate device: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE licenses SET device_count = device_count - 1, updated_at = $2
		WHERE id = $1 AND device_count > 0
	`, licenseID, at)
	if err != nil {
		return fmt.Errorf("failed to release device slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
