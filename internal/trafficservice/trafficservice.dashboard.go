// FilePath: internal/trafficservice/trafficservice.dashboard.go
package trafficservice

import (
	"context"
	"encoding/json"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/internal/models"
)

const (
	cacheKeyOverview   = "dashboard:overview"
	cacheKeyHotspots   = "dashboard:hotspots"
	cacheKeyAlertZones = "dashboard:alert_zones"
)

// GetOverview returns the composed dashboard overview, served from the redis
// cache when fresh.
func (s *TrafficService) GetOverview(ctx context.Context) (*models.DashboardOverview, error) {
	var cached models.DashboardOverview
	if s.cacheGet(ctx, cacheKeyOverview, &cached) {
		return &cached, nil
	}

	cameras, err := s.Cameras.List(ctx, models.DeviceFilters{}, 0, 100)
	if err != nil {
		return nil, err
	}
	signals, err := s.Signals.List(ctx, models.DeviceFilters{}, 0, 100)
	if err != nil {
		return nil, err
	}
	rollup, err := s.Aggregator.Rollup(ctx)
	if err != nil {
		return nil, err
	}

	overview := &models.DashboardOverview{
		TotalCameras: len(cameras),
		TotalSignals: len(signals),
		Rollup:       rollup,
		GeneratedAt:  time.Now(),
	}
	for _, c := range cameras {
		switch c.Status {
		case models.StatusOnline:
			overview.OnlineCameras++
		case models.StatusWarning:
			overview.WarningDevices++
		}
	}
	for _, sig := range signals {
		switch sig.Status {
		case models.StatusOnline:
			overview.OnlineSignals++
		case models.StatusWarning:
			overview.WarningDevices++
		}
	}

	s.cacheSet(ctx, cacheKeyOverview, overview)
	return overview, nil
}

// GetHotspots returns devices currently reporting moderate or high
// congestion, worst first.
func (s *TrafficService) GetHotspots(ctx context.Context) ([]models.Hotspot, error) {
	var cached []models.Hotspot
	if s.cacheGet(ctx, cacheKeyHotspots, &cached) {
		return cached, nil
	}

	cameras, err := s.Cameras.List(ctx, models.DeviceFilters{}, 0, 100)
	if err != nil {
		return nil, err
	}
	signals, err := s.Signals.List(ctx, models.DeviceFilters{}, 0, 100)
	if err != nil {
		return nil, err
	}

	hotspots := []models.Hotspot{}
	for _, c := range cameras {
		if c.Metrics == nil || c.Metrics.CongestionLevel == models.CongestionLow {
			continue
		}
		hotspots = append(hotspots, models.Hotspot{
			DeviceID:        c.ID,
			Kind:            models.KindCamera,
			Name:            c.Name,
			Location:        c.Location,
			Latitude:        c.Latitude,
			Longitude:       c.Longitude,
			CongestionLevel: c.Metrics.CongestionLevel,
			VehicleCount:    c.Metrics.VehicleCount,
		})
	}
	for _, sig := range signals {
		if sig.CongestionLevel == models.CongestionLow || sig.CongestionLevel == "" {
			continue
		}
		hotspots = append(hotspots, models.Hotspot{
			DeviceID:        sig.ID,
			Kind:            models.KindSignal,
			Name:            sig.Name,
			Location:        sig.Location,
			Latitude:        sig.Latitude,
			Longitude:       sig.Longitude,
			CongestionLevel: sig.CongestionLevel,
		})
	}

	// High before Moderate, stable within a level.
	ordered := make([]models.Hotspot, 0, len(hotspots))
	for _, level := range []models.CongestionLevel{models.CongestionHigh, models.CongestionModerate} {
		for _, h := range hotspots {
			if h.CongestionLevel == level {
				ordered = append(ordered, h)
			}
		}
	}

	s.cacheSet(ctx, cacheKeyHotspots, ordered)
	return ordered, nil
}

// GetAlertZones returns devices needing operator attention: offline, in
// warning state, or reporting high congestion.
func (s *TrafficService) GetAlertZones(ctx context.Context) ([]models.AlertZone, error) {
	var cached []models.AlertZone
	if s.cacheGet(ctx, cacheKeyAlertZones, &cached) {
		return cached, nil
	}

	cameras, err := s.Cameras.List(ctx, models.DeviceFilters{}, 0, 100)
	if err != nil {
		return nil, err
	}
	signals, err := s.Signals.List(ctx, models.DeviceFilters{}, 0, 100)
	if err != nil {
		return nil, err
	}

	zones := []models.AlertZone{}
	for _, c := range cameras {
		if reason := cameraAlertReason(c); reason != "" {
			zones = append(zones, models.AlertZone{
				DeviceID: c.ID,
				Kind:     models.KindCamera,
				Name:     c.Name,
				Location: c.Location,
				Status:   c.Status,
				Reason:   reason,
			})
		}
	}
	for _, sig := range signals {
		if reason := signalAlertReason(sig); reason != "" {
			zones = append(zones, models.AlertZone{
				DeviceID: sig.ID,
				Kind:     models.KindSignal,
				Name:     sig.Name,
				Location: sig.Location,
				Status:   sig.Status,
				Reason:   reason,
			})
		}
	}

	s.cacheSet(ctx, cacheKeyAlertZones, zones)
	return zones, nil
}

func cameraAlertReason(c *models.Camera) string {
	switch {
	case c.Status == models.StatusOffline:
		return "device offline"
	case c.Status == models.StatusWarning:
		return "device in warning state"
	case c.Metrics != nil && c.Metrics.CongestionLevel == models.CongestionHigh:
		return "high congestion"
	}
	return ""
}

func signalAlertReason(s *models.Signal) string {
	switch {
	case s.Status == models.StatusOffline:
		return "device offline"
	case s.Status == models.StatusWarning:
		return "device in warning state"
	case s.CongestionLevel == models.CongestionHigh:
		return "high congestion"
	}
	return ""
}

// cacheGet loads a cached view; false on miss, disabled cache, or any error.
func (s *TrafficService) cacheGet(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, target); err != nil {
		nuts.L.Warnf("[TrafficService] Corrupt cache entry %s: %v", key, err)
		return false
	}
	return true
}

func (s *TrafficService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		nuts.L.Warnf("[TrafficService] Failed to cache %s: %v", key, err)
	}
}

// invalidateDashboard drops the cached dashboard views after any device
// mutation.
func (s *TrafficService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKeyOverview, cacheKeyHotspots, cacheKeyAlertZones).Err(); err != nil {
		nuts.L.Warnf("[TrafficService] Failed to invalidate dashboard cache: %v", err)
	}
}
