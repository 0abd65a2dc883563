// FilePath: internal/models/models.camera.go
package models

import (
	"database/sql/driver"
	"time"
)

type Camera struct {
	ID         string       `json:"id" db:"id"`
	Name       string       `json:"name" db:"name" writexs:"admin,operator,system"`
	Location   string       `json:"location" db:"location" writexs:"admin,operator,system"`
	Latitude   float64      `json:"latitude" db:"latitude" writexs:"admin,operator,system"`
	Longitude  float64      `json:"longitude" db:"longitude" writexs:"admin,operator,system"`
	Status     DeviceStatus `json:"status" db:"status" writexs:"admin,operator,system"`
	LastSeen   time.Time    `json:"last_seen" db:"last_seen"`
	Model      string       `json:"model" db:"model" writexs:"admin,system"`
	Firmware   string       `json:"firmware" db:"firmware" writexs:"admin,system"`
	Resolution string       `json:"resolution" db:"resolution" writexs:"admin,system"`
	FrameRate  int          `json:"frame_rate" db:"frame_rate" writexs:"admin,system"`

	Settings CameraSettings  `json:"settings" db:"settings" writexs:"admin,operator,system"`
	Metrics  *TrafficMetrics `json:"metrics,omitempty" db:"metrics"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CameraSettings is the operator-adjustable configuration block. Changes to
// it are echoed to the device room as a configUpdate message.
type CameraSettings struct {
	Brightness int  `json:"brightness"`
	Contrast   int  `json:"contrast"`
	NightMode  bool `json:"night_mode"`
}

func (s CameraSettings) Value() (driver.Value, error) {
	return jsonValue(s)
}

func (s *CameraSettings) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// CameraConfigUpdate is the narrow payload delivered to a camera's own room
// when control-relevant fields change. The room is already device-scoped, so
// the payload carries the settings only.
type CameraConfigUpdate struct {
	Settings CameraSettings `json:"settings"`
}
