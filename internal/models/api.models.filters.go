// FilePath: internal/models/api.models.filters.go
package models

import "time"

// DeviceFilters defines the available filter options for device listings.
type DeviceFilters struct {
	Status DeviceStatus `json:"status" schema:"status"`
	Search string       `json:"search" schema:"search"`
}

// AnalyticsRange is the query shape of GET /analytics. Both bounds are
// optional; an empty range means the trailing 24 hours.
type AnalyticsRange struct {
	StartDate time.Time `json:"start_date" schema:"startDate"`
	EndDate   time.Time `json:"end_date" schema:"endDate"`
}

// Bounds resolves the requested range, defaulting to the trailing 24 hours
// ending at now.
func (r AnalyticsRange) Bounds(now time.Time) (time.Time, time.Time) {
	start, end := r.StartDate, r.EndDate
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = end.Add(-24 * time.Hour)
	}
	return start, end
}
