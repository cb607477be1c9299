package models

import (
	"time"

	"github.com/google/uuid"
)

type Plan string

const (
	PlanIndividual  Plan = "Individual"
	PlanTwoDevices  Plan = "2 Devices"
	PlanFiveDevices Plan = "5 Devices"
	PlanEnterprise  Plan = "Enterprise"
)

// Plans lists every purchasable tier in display order.
var Plans = []Plan{PlanIndividual, PlanTwoDevices, PlanFiveDevices, PlanEnterprise}

// MaxDevices returns the device quota of a plan. The second value is false for
// strings that are not a known plan.
func (p Plan) MaxDevices() (int, bool) {
	switch p {
	case PlanIndividual:
		return 1, true
	case PlanTwoDevices:
		return 2, true
	case PlanFiveDevices:
		return 5, true
	case PlanEnterprise:
		return 999, true
	}
	return 0, false
}

type License struct {
	ID          uuid.UUID  `json:"id"`
	Key         string     `json:"license_key"`
	Email       *string    `json:"email,omitempty"`
	Plan        Plan       `json:"plan"`
	MaxDevices  int        `json:"max_devices"`
	DeviceCount int        `json:"device_count"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether the license carries an expiration that lies before now.
func (l *License) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

type LicenseActivation struct {
	ID            uuid.UUID  `json:"id"`
	LicenseID     uuid.UUID  `json:"license_id"`
	MachineID     string     `json:"machine_id"`
	DeviceName    *string    `json:"device_name,omitempty"`
	OSVersion     *string    `json:"os_version,omitempty"`
	AppVersion    *string    `json:"app_version,omitempty"`
	IsActive      bool       `json:"is_active"`
	ActivatedAt   time.Time  `json:"activated_at"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// Payment is written by the payment provider integration; this service only reads it.
type Payment struct {
	ID          uuid.UUID `json:"id"`
	LicenseID   uuid.UUID `json:"license_id"`
	Provider    string    `json:"provider"`
	ProviderRef string    `json:"provider_ref"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type LicenseDetail struct {
	License
	Devices  []LicenseActivation `json:"devices"`
	Payments []Payment           `json:"payments"`
}

type ReleaseType string

const (
	ReleaseTypeNormal ReleaseType = "normal"
	ReleaseTypeForced ReleaseType = "forced"
	ReleaseTypeBeta   ReleaseType = "beta"
)

func (t ReleaseType) Valid() bool {
	switch t {
	case ReleaseTypeNormal, ReleaseTypeForced, ReleaseTypeBeta:
		return true
	}
	return false
}

type Release struct {
	ID            uuid.UUID   `json:"id"`
	Version       string      `json:"version"`
	BuildNumber   int         `json:"build_number"`
	ReleaseType   ReleaseType `json:"release_type"`
	Filename      string      `json:"filename"`
	FileSize      int64       `json:"file_size"`
	Checksum      string      `json:"checksum"`
	ReleaseNotes  string      `json:"release_notes,omitempty"`
	ForceUpdate   bool        `json:"force_update"`
	IsActive      bool        `json:"is_active"`
	DownloadCount int64       `json:"download_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type HistoryStatus string

const (
	HistoryStatusStarted   HistoryStatus = "started"
	HistoryStatusCompleted HistoryStatus = "completed"
	HistoryStatusFailed    HistoryStatus = "failed"
)

type UpdateHistory struct {
	ID           uuid.UUID     `json:"id"`
	UpdateID     uuid.UUID     `json:"update_id"`
	UserID       string        `json:"user_id"`
	FromVersion  string        `json:"from_version"`
	ToVersion    string        `json:"to_version"`
	Platform     string        `json:"platform"`
	Status       HistoryStatus `json:"status"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

type LicenseCheckLog struct {
	ID              uuid.UUID              `json:"id"`
	LicenseID       *uuid.UUID             `json:"license_id,omitempty"`
	LicenseKey      string                 `json:"license_key,omitempty"`
	MachineID       string                 `json:"machine_id,omitempty"`
	RequestPayload  map[string]interface{} `json:"request_payload"`
	ResponsePayload map[string]interface{} `json:"response_payload"`
	IPAddress       string                 `json:"ip_address"`
	UserAgent       string                 `json:"user_agent"`
	StatusCode      int                    `json:"status_code"`
	CreatedAt       time.Time              `json:"created_at"`
}

type AdminLog struct {
	ID         uuid.UUID              `json:"id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uuid.UUID             `json:"entity_id,omitempty"`
	Actor      *string                `json:"actor,omitempty"`
	Details    map[string]interface{} `json:"details"`
	CreatedAt  time.Time              `json:"created_at"`
}

type LicenseStats struct {
	TotalLicenses     int          `json:"total_licenses"`
	ActiveLicenses    int          `json:"active_licenses"`
	ActiveActivations int          `json:"active_activations"`
	ByPlan            map[Plan]int `json:"by_plan"`
}

type UpdateStats struct {
	TotalReleases  int   `json:"total_releases"`
	ActiveReleases int   `json:"active_releases"`
	TotalDownloads int64 `json:"total_downloads"`
	RecentUpdates  int   `json:"recent_updates"`
}

type DashboardStats struct {
	Licenses        LicenseStats `json:"licenses"`
	Updates         UpdateStats  `json:"updates"`
	RecentAdminLogs []AdminLog   `json:"recent_admin_logs"`
}
