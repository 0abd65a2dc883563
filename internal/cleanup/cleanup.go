// FilePath: internal/cleanup/cleanup.go
package cleanup

import (
	"context"
	"fmt"

	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/internal/repository"
)

// Service coordinates deletion of a device together with its dependent data.
type Service struct {
	cameras   repository.CameraRepository
	signals   repository.SignalRepository
	analytics repository.AnalyticsRepository
	events    *nuts.EventEmitter
}

// New creates a new cleanup Service
func New(
	cameras repository.CameraRepository,
	signals repository.SignalRepository,
	analytics repository.AnalyticsRepository,
) *Service {
	return &Service{
		cameras:   cameras,
		signals:   signals,
		analytics: analytics,
		events:    nuts.NewEventEmitter(),
	}
}

// DeleteCamera deletes a camera record. Camera analytics samples carry no
// junction reference, so nothing cascades.
func (s *Service) DeleteCamera(ctx context.Context, cameraID string) error {
	if err := s.cameras.Delete(ctx, cameraID); err != nil {
		return err
	}
	s.events.Emit("camera.deleted", cameraID)
	return nil
}

// DeleteSignal deletes a signal and all analytics samples that reference it
// as their junction. The signal row and its samples live in different
// databases, so one transaction cannot cover both: the signal is deleted
// first, and a failed sample cleanup afterwards leaves orphaned samples
// rather than a half-deleted signal. Orphans are bounded by the sample
// retention policy and are logged here.
func (s *Service) DeleteSignal(ctx context.Context, signalID string) error {
	if err := s.signals.Delete(ctx, signalID); err != nil {
		return err
	}

	if err := s.deleteJunctionSamples(ctx, signalID); err != nil {
		nuts.L.Errorf("[Cleanup] Signal %s deleted but sample cleanup failed: %v", signalID, err)
	}

	s.events.Emit("signal.deleted", signalID)
	return nil
}

func (s *Service) deleteJunctionSamples(ctx context.Context, junctionID string) error {
	tx, err := s.analytics.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	if err := s.analytics.DeleteByJunction(ctx, junctionID, tx); err != nil {
		return fmt.Errorf("failed to delete junction samples: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// OnCleanup registers a callback for cleanup events ("camera.deleted",
// "signal.deleted").
func (s *Service) OnCleanup(event string, handler func(id string)) {
	s.events.On(event, "cleanup_handler", func(id string) {
		handler(id)
	})
}
