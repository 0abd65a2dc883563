// FilePath: internal/models/models.signal.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// SignalMode is the operating mode of a traffic signal.
type SignalMode string

const (
	ModeAI        SignalMode = "AI"
	ModeManual    SignalMode = "Manual"
	ModeScheduled SignalMode = "Scheduled"
)

type Signal struct {
	ID        string       `json:"id" db:"id"`
	Name      string       `json:"name" db:"name" writexs:"admin,operator,system"`
	Location  string       `json:"location" db:"location" writexs:"admin,operator,system"`
	Latitude  float64      `json:"latitude" db:"latitude" writexs:"admin,operator,system"`
	Longitude float64      `json:"longitude" db:"longitude" writexs:"admin,operator,system"`
	Status    DeviceStatus `json:"status" db:"status" writexs:"admin,operator,system"`
	LastSeen  time.Time    `json:"last_seen" db:"last_seen"`

	Mode SignalMode `json:"mode" db:"mode" writexs:"admin,operator,system"`
	// CurrentPhase is a free-form phase name ("North-South Green", "All-Way Red").
	CurrentPhase string `json:"current_phase" db:"current_phase" writexs:"admin,operator,system"`
	// RemainingTime is a display string ("32s"), not a numeric duration.
	RemainingTime   string          `json:"remaining_time" db:"remaining_time" writexs:"admin,operator,system"`
	CongestionLevel CongestionLevel `json:"congestion_level" db:"congestion_level"`
	Settings        SignalSettings  `json:"settings" db:"settings" writexs:"admin,operator,system"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SignalSettings holds the phase plan and weekly schedule for a signal.
type SignalSettings struct {
	PhaseDurations []PhaseDuration `json:"phase_durations"`
	Schedule       []ScheduleEntry `json:"schedule"`
}

type PhaseDuration struct {
	Phase   string `json:"phase"`
	Seconds int    `json:"seconds"`
}

type ScheduleEntry struct {
	Day   string     `json:"day"`
	Start string     `json:"start"`
	End   string     `json:"end"`
	Mode  SignalMode `json:"mode"`
}

func (s SignalSettings) Value() (driver.Value, error) {
	return jsonValue(s)
}

func (s *SignalSettings) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// SignalConfigUpdate is the narrow payload delivered to a signal's own room
// when control-relevant fields change: exactly mode, currentPhase and
// remainingTime, nothing else. The room is already device-scoped.
type SignalConfigUpdate struct {
	Mode          SignalMode `json:"mode"`
	CurrentPhase  string     `json:"current_phase"`
	RemainingTime string     `json:"remaining_time"`
}

func jsonValue(v interface{}) (driver.Value, error) {
	return json.Marshal(v)
}
