// FilePath: internal/models/models.analytics.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// AnalyticsSample is one telemetry observation. Samples are append-only and
// never mutated after creation.
type AnalyticsSample struct {
	ID              string          `json:"id" db:"id"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
	TrafficVolume   int             `json:"traffic_volume" db:"traffic_volume"`
	CongestionLevel CongestionLevel `json:"congestion_level" db:"congestion_level"`
	AverageSpeed    float64         `json:"average_speed" db:"average_speed"`
	VehicleTypes    VehicleTypeMap  `json:"vehicle_types" db:"vehicle_types"`
	// JunctionID references the owning Signal, empty for camera samples.
	JunctionID string `json:"junction_id,omitempty" db:"junction_id"`
}

// VehicleTypeMap is a per-class vehicle count stored as JSONB.
type VehicleTypeMap map[string]int

func (m VehicleTypeMap) Value() (driver.Value, error) {
	if m == nil {
		m = VehicleTypeMap{}
	}
	return json.Marshal(m)
}

func (m *VehicleTypeMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// AnalyticsRollup is the trailing 24-hour aggregate broadcast to the admin
// room after each recorded sample. Congestion labels and vehicle-type
// breakdowns are the raw collected lists; the dashboard buckets them itself.
type AnalyticsRollup struct {
	WindowStart      time.Time         `json:"window_start"`
	WindowEnd        time.Time         `json:"window_end"`
	SampleCount      int               `json:"sample_count"`
	AvgTrafficVolume float64           `json:"avg_traffic_volume"`
	AvgSpeed         float64           `json:"avg_speed"`
	CongestionLevels []CongestionLevel `json:"congestion_levels"`
	VehicleTypes     []VehicleTypeMap  `json:"vehicle_types"`
}

// HourlyTrendBucket is one (year, month, day, hour) group of the on-demand
// hourly trend query.
type HourlyTrendBucket struct {
	Hour            time.Time       `json:"hour"`
	AvgVolume       float64         `json:"avg_volume"`
	SampleCount     int             `json:"sample_count"`
	CongestionLevel CongestionLevel `json:"congestion_level"`
}
