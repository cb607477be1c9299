package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"macman/internal/models"
)

type LogStore interface {
	CreateLicenseCheckLog(ctx context.Context, log *models.LicenseCheckLog) error
	CreateAdminLog(ctx context.Context, log *models.AdminLog) error
	// ListLicenseCheckLogs lists validation logs newest first. An empty
	// licenseKey lists across all licenses.
	ListLicenseCheckLogs(ctx context.Context, licenseKey string, statusCode *int, pagination models.PaginationParams) ([]models.LicenseCheckLog, int, error)
	ListAdminLogs(ctx context.Context, pagination models.PaginationParams) ([]models.AdminLog, int, error)
}

type PostgresLogStore struct {
	DB *pgxpool.Pool
}

func NewPostgresLogStore(db *pgxpool.Pool) *PostgresLogStore {
	return &PostgresLogStore{DB: db}
}

func (s *PostgresLogStore) CreateLicenseCheckLog(ctx context.Context, log *models.LicenseCheckLog) error {
	query := `
		INSERT INTO license_check_logs (license_id, license_key, machine_id, request_payload, response_payload, ip_address, user_agent, status_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	requestPayloadJSON, err := json.Marshal(log.RequestPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	responsePayloadJSON, err := json.Marshal(log.ResponsePayload)
	if err != nil {
		return fmt.Errorf("failed to marshal response payload: %w", err)
	}

	return s.DB.QueryRow(
		ctx,
		query,
		log.LicenseID,
		log.LicenseKey,
		log.MachineID,
		requestPayloadJSON,
		responsePayloadJSON,
		log.IPAddress,
		log.UserAgent,
		log.StatusCode,
	).Scan(&log.ID, &log.CreatedAt)
}

func (s *PostgresLogStore) CreateAdminLog(ctx context.Context, log *models.AdminLog) error {
	query := `
		INSERT INTO admin_logs (action, entity_type, entity_id, actor, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	detailsJSON, err := json.Marshal(log.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	return s.DB.QueryRow(
		ctx,
		query,
		log.Action,
		log.EntityType,
		log.EntityID,
		log.Actor,
		detailsJSON,
	).Scan(&log.ID, &log.CreatedAt)
}

func (s *PostgresLogStore) ListLicenseCheckLogs(ctx context.Context, licenseKey string, statusCode *int, pagination models.PaginationParams) ([]models.LicenseCheckLog, int, error) {
	query := `
		SELECT id, license_id, COALESCE(license_key, ''), COALESCE(machine_id, ''), request_payload, response_payload,
			COALESCE(ip_address, ''), COALESCE(user_agent, ''), status_code, created_at
		FROM license_check_logs
		WHERE TRUE`
	countQuery := `SELECT count(*) FROM license_check_logs WHERE TRUE`

	var args []interface{}
	if licenseKey != "" {
		args = append(args, licenseKey)
		query += fmt.Sprintf(" AND license_key = $%d", len(args))
		countQuery += fmt.Sprintf(" AND license_key = $%d", len(args))
	}
	if statusCode != nil {
		args = append(args, *statusCode)
		query += fmt.Sprintf(" AND status_code = $%d", len(args))
		countQuery += fmt.Sprintf(" AND status_code = $%d", len(args))
	}

	var totalCount int
	if err := s.DB.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count of log entries: %w", err)
	}

	limit, offset := pagination.LimitOffset()
	query += ` ORDER BY created_at DESC`
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query license check logs: %w", err)
	}
	defer rows.Close()

	var logs []models.LicenseCheckLog
	for rows.Next() {
		var log models.LicenseCheckLog
		var requestPayloadJSON, responsePayloadJSON []byte
		if err := rows.Scan(
			&log.ID,
			&log.LicenseID,
			&log.LicenseKey,
			&log.MachineID,
			&requestPayloadJSON,
			&responsePayloadJSON,
			&log.IPAddress,
			&log.UserAgent,
			&log.StatusCode,
			&log.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan license check log: %w", err)
		}

		if len(requestPayloadJSON) > 0 {
			if err := json.Unmarshal(requestPayloadJSON, &log.RequestPayload); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal request payload: %w", err)
			}
		}
		if len(responsePayloadJSON) > 0 {
			if err := json.Unmarshal(responsePayloadJSON, &log.ResponsePayload); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal response payload: %w", err)
			}
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return logs, totalCount, nil
}

func (s *PostgresLogStore) ListAdminLogs(ctx context.Context, pagination models.PaginationParams) ([]models.AdminLog, int, error) {
	var totalCount int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM admin_logs`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count of admin logs: %w", err)
	}

	limit, offset := pagination.LimitOffset()
	query := `
		SELECT id, action, entity_type, entity_id, actor, details, created_at
		FROM admin_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.DB.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query admin logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AdminLog
	for rows.Next() {
		var log models.AdminLog
		var detailsJSON []byte
		if err := rows.Scan(
			&log.ID,
			&log.Action,
			&log.EntityType,
			&log.EntityID,
			&log.Actor,
			&detailsJSON,
			&log.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan admin log: %w", err)
		}

		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &log.Details); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return logs, totalCount, nil
}
