// FilePath: internal/trafficservice/trafficservice.devices.go
package trafficservice

import (
	"context"

	"github.com/prajukk/backed-traffic/internal/models"
)

// ListCameras retrieves a paginated, filtered camera list.
func (s *TrafficService) ListCameras(ctx context.Context, filters models.DeviceFilters, offset, limit int) ([]*models.Camera, error) {
	offset, limit = clampPagination(offset, limit)
	return s.Cameras.List(ctx, filters, offset, limit)
}

// GetCamera retrieves a single camera by id.
func (s *TrafficService) GetCamera(ctx context.Context, id string) (*models.Camera, error) {
	return s.Cameras.Get(ctx, id)
}

// CreateCamera persists and announces a new camera.
func (s *TrafficService) CreateCamera(ctx context.Context, camera *models.Camera) error {
	if err := s.Coordinator.CreateCamera(ctx, camera); err != nil {
		return err
	}
	s.invalidateDashboard(ctx)
	return nil
}

// UpdateCamera applies a sparse patch through the coordinator and returns
// the canonical stored record.
func (s *TrafficService) UpdateCamera(ctx context.Context, id string, patch *models.Camera, roles []string) (*models.Camera, error) {
	updated, err := s.Coordinator.UpdateCamera(ctx, id, patch, roles)
	if err != nil {
		return nil, err
	}
	s.invalidateDashboard(ctx)
	return updated, nil
}

// UpdateCameraSettings applies a settings-only patch.
func (s *TrafficService) UpdateCameraSettings(ctx context.Context, id string, settings models.CameraSettings, roles []string) (*models.Camera, error) {
	patch := &models.Camera{Settings: settings}
	return s.UpdateCamera(ctx, id, patch, roles)
}

// DeleteCamera removes a camera and notifies subscribers.
func (s *TrafficService) DeleteCamera(ctx context.Context, id string) error {
	if err := s.Coordinator.DeleteCamera(ctx, id); err != nil {
		return err
	}
	s.invalidateDashboard(ctx)
	return nil
}

// ListSignals retrieves a paginated, filtered signal list.
func (s *TrafficService) ListSignals(ctx context.Context, filters models.DeviceFilters, offset, limit int) ([]*models.Signal, error) {
	offset, limit = clampPagination(offset, limit)
	return s.Signals.List(ctx, filters, offset, limit)
}

// GetSignal retrieves a single signal by id.
func (s *TrafficService) GetSignal(ctx context.Context, id string) (*models.Signal, error) {
	return s.Signals.Get(ctx, id)
}

// CreateSignal persists and announces a new signal.
func (s *TrafficService) CreateSignal(ctx context.Context, signal *models.Signal) error {
	if err := s.Coordinator.CreateSignal(ctx, signal); err != nil {
		return err
	}
	s.invalidateDashboard(ctx)
	return nil
}

// UpdateSignal applies a sparse patch through the coordinator.
func (s *TrafficService) UpdateSignal(ctx context.Context, id string, patch *models.Signal, roles []string) (*models.Signal, error) {
	updated, err := s.Coordinator.UpdateSignal(ctx, id, patch, roles)
	if err != nil {
		return nil, err
	}
	s.invalidateDashboard(ctx)
	return updated, nil
}

// UpdateSignalSettings applies a settings-only patch.
func (s *TrafficService) UpdateSignalSettings(ctx context.Context, id string, settings models.SignalSettings, roles []string) (*models.Signal, error) {
	patch := &models.Signal{Settings: settings}
	return s.UpdateSignal(ctx, id, patch, roles)
}

// DeleteSignal removes a signal and its junction samples.
func (s *TrafficService) DeleteSignal(ctx context.Context, id string) error {
	if err := s.Coordinator.DeleteSignal(ctx, id); err != nil {
		return err
	}
	s.invalidateDashboard(ctx)
	return nil
}

func clampPagination(offset, limit int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 50 // Default limit
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
