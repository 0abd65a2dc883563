// FilePath: internal/models/models.device.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// DeviceKind distinguishes the two device classes tracked by the store.
type DeviceKind string

const (
	KindCamera DeviceKind = "camera"
	KindSignal DeviceKind = "signal"
)

// ParseDeviceKind maps a wire-level type string to a DeviceKind.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch DeviceKind(s) {
	case KindCamera:
		return KindCamera, nil
	case KindSignal:
		return KindSignal, nil
	}
	return "", fmt.Errorf("unknown device kind %q", s)
}

// DeviceStatus is the connectivity state of a device.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
	StatusWarning DeviceStatus = "warning"
)

// Roles known to the system. Mutating operations require operator or admin.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
	RoleSystem   = "system"
)

// CongestionLevel is a three-level severity label for traffic conditions.
type CongestionLevel string

const (
	CongestionLow      CongestionLevel = "Low"
	CongestionModerate CongestionLevel = "Moderate"
	CongestionHigh     CongestionLevel = "High"
)

// Score maps a congestion label to its numeric severity (Low=1, Moderate=2, High=3).
func (c CongestionLevel) Score() float64 {
	switch c {
	case CongestionModerate:
		return 2
	case CongestionHigh:
		return 3
	default:
		return 1
	}
}

// CongestionFromScore maps an averaged severity score back to a label.
// Thresholds: <1.5 Low, <2.5 Moderate, else High.
func CongestionFromScore(score float64) CongestionLevel {
	switch {
	case score < 1.5:
		return CongestionLow
	case score < 2.5:
		return CongestionModerate
	default:
		return CongestionHigh
	}
}

// TrafficMetrics is the transient metrics block a camera pushes with each
// telemetry event. It is replaced wholesale on every push, never merged.
type TrafficMetrics struct {
	VehicleCount    int             `json:"vehicle_count"`
	CongestionLevel CongestionLevel `json:"congestion_level"`
	AverageSpeed    float64         `json:"average_speed"`
	VehicleTypes    map[string]int  `json:"vehicle_types"`
}

// Value implements driver.Valuer so metrics can be stored as JSONB.
func (m TrafficMetrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB columns.
func (m *TrafficMetrics) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// TelemetryPayload is the metrics payload of a deviceData push. Signal
// devices additionally carry phase information that gets promoted onto the
// device record.
type TelemetryPayload struct {
	VehicleCount    int             `json:"vehicle_count"`
	CongestionLevel CongestionLevel `json:"congestion_level"`
	AverageSpeed    float64         `json:"average_speed"`
	VehicleTypes    map[string]int  `json:"vehicle_types"`
	CurrentPhase    string          `json:"current_phase,omitempty"`
	RemainingTime   string          `json:"remaining_time,omitempty"`
}

// Metrics extracts the camera metrics block from a telemetry payload.
func (t TelemetryPayload) Metrics() TrafficMetrics {
	return TrafficMetrics{
		VehicleCount:    t.VehicleCount,
		CongestionLevel: t.CongestionLevel,
		AverageSpeed:    t.AverageSpeed,
		VehicleTypes:    t.VehicleTypes,
	}
}

func scanJSON(value interface{}, target interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, target)
	case string:
		return json.Unmarshal([]byte(v), target)
	}
	return fmt.Errorf("unsupported column type %T for JSON scan", value)
}
