package service

import (
	"context"
	"log/slog"
	"time"

	"macman/internal/models"
	"macman/internal/store"
)

// auditWriteTimeout bounds each background audit insert.
const auditWriteTimeout = 5 * time.Second

// AsyncLogAdminAction emits the entry to slog and persists it in the background.
func AsyncLogAdminAction(ctx context.Context, logStore store.LogStore, entry *models.AdminLog) {
	slog.Info("Admin Action",
		"action", entry.Action,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"actor", entry.Actor,
	)

	persistAsync(ctx, "admin log", func(ctx context.Context) error {
		return logStore.CreateAdminLog(ctx, entry)
	}, "action", entry.Action)
}

func AsyncLogLicenseCheck(ctx context.Context, logStore store.LogStore, entry *models.LicenseCheckLog, valid bool, reason string) {
	slog.Info("License Validation",
		"key", entry.LicenseKey,
		"machine_id", entry.MachineID,
		"valid", valid,
		"reason", reason,
		"ip", entry.IPAddress,
		"status", entry.StatusCode,
	)

	persistAsync(ctx, "license check log", func(ctx context.Context) error {
		return logStore.CreateLicenseCheckLog(ctx, entry)
	}, "key", entry.LicenseKey)
}

// persistAsync runs write detached from the request's cancellation, so the
// audit row survives the client hanging up.
func persistAsync(ctx context.Context, what string, write func(context.Context) error, attrs ...any) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
		defer cancel()

		if err := write(ctx); err != nil {
			slog.Error("Failed to create "+what, append([]any{"error", err}, attrs...)...)
		}
	}()
}
