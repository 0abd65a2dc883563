// FilePath: internal/trafficservice/trafficservice.analytics.go
package trafficservice

import (
	"context"
	"time"

	"github.com/prajukk/backed-traffic/internal/models"
)

// GetAnalytics returns samples in the requested range, defaulting to the
// trailing 24 hours.
func (s *TrafficService) GetAnalytics(ctx context.Context, r models.AnalyticsRange) ([]models.AnalyticsSample, error) {
	start, end := r.Bounds(time.Now())
	return s.Analytics.SamplesBetween(ctx, start, end)
}

// GetJunctionAnalytics returns samples owned by one signal junction.
func (s *TrafficService) GetJunctionAnalytics(ctx context.Context, junctionID string, r models.AnalyticsRange) ([]models.AnalyticsSample, error) {
	// Resolve the junction first so an unknown id is a 404, not an empty list.
	if _, err := s.Signals.Get(ctx, junctionID); err != nil {
		return nil, err
	}
	start, end := r.Bounds(time.Now())
	return s.Analytics.SamplesByJunction(ctx, junctionID, start, end)
}

// GetHourlyTrend returns the trailing-24h hourly trend buckets.
func (s *TrafficService) GetHourlyTrend(ctx context.Context) ([]models.HourlyTrendBucket, error) {
	return s.Aggregator.HourlyTrend(ctx)
}
