package models

// ValidationError is the closed set of failure kinds reported to the desktop client.
type ValidationError string

const (
	ValidationErrorInvalidKey        ValidationError = "invalid_key"
	ValidationErrorMachineMismatch   ValidationError = "machine_mismatch"
	ValidationErrorMaxDevicesReached ValidationError = "max_devices_reached"
	ValidationErrorInactive          ValidationError = "inactive"
	ValidationErrorExpired           ValidationError = "expired"
)

// The client-facing payloads below use camelCase field names; the desktop
// application parses them directly.

type ValidationData struct {
	LicenseKey  string `json:"licenseKey"`
	Plan        Plan   `json:"plan"`
	MaxDevices  int    `json:"maxDevices"`
	DeviceCount int    `json:"deviceCount"`
	IsActive    bool   `json:"isActive"`
}

type ValidationResult struct {
	Valid       bool            `json:"valid"`
	Message     string          `json:"message"`
	ErrorType   ValidationError `json:"errorType,omitempty"`
	Data        *ValidationData `json:"data,omitempty"`
	PurchaseURL string          `json:"purchaseUrl,omitempty"`
	Token       string          `json:"token,omitempty"`
}

type UpdateInfo struct {
	Version      string      `json:"version"`
	BuildNumber  int         `json:"buildNumber"`
	ReleaseType  ReleaseType `json:"releaseType"`
	DownloadURL  string      `json:"downloadUrl"`
	FileSize     int64       `json:"fileSize"`
	Checksum     string      `json:"checksum"`
	ReleaseNotes string      `json:"releaseNotes,omitempty"`
	ForceUpdate  bool        `json:"forceUpdate"`
}

type UpdateCheckResult struct {
	UpdateAvailable bool        `json:"updateAvailable"`
	Update          *UpdateInfo `json:"update,omitempty"`
	Message         string      `json:"message,omitempty"`
}
