// FilePath: internal/models/models.dashboard.go
package models

import "time"

// DashboardOverview is the composed read-only view behind GET /dashboard/overview.
type DashboardOverview struct {
	TotalCameras   int              `json:"total_cameras"`
	OnlineCameras  int              `json:"online_cameras"`
	TotalSignals   int              `json:"total_signals"`
	OnlineSignals  int              `json:"online_signals"`
	WarningDevices int              `json:"warning_devices"`
	Rollup         *AnalyticsRollup `json:"rollup,omitempty"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// Hotspot is a device location currently reporting elevated congestion.
type Hotspot struct {
	DeviceID        string          `json:"device_id"`
	Kind            DeviceKind      `json:"kind"`
	Name            string          `json:"name"`
	Location        string          `json:"location"`
	Latitude        float64         `json:"latitude"`
	Longitude       float64         `json:"longitude"`
	CongestionLevel CongestionLevel `json:"congestion_level"`
	VehicleCount    int             `json:"vehicle_count"`
}

// AlertZone is a device that needs operator attention: offline, in warning
// state, or reporting high congestion.
type AlertZone struct {
	DeviceID string       `json:"device_id"`
	Kind     DeviceKind   `json:"kind"`
	Name     string       `json:"name"`
	Location string       `json:"location"`
	Status   DeviceStatus `json:"status"`
	Reason   string       `json:"reason"`
}
