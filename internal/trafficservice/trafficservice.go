// FilePath: internal/trafficservice/trafficservice.go
package trafficservice

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prajukk/backed-traffic/internal/analytics"
	"github.com/prajukk/backed-traffic/internal/coordinator"
	"github.com/prajukk/backed-traffic/internal/errors"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/repository"
)

// TrafficService contains all repositories and service-wide dependencies.
// Mutations flow through the Coordinator so every write is broadcast; reads
// go straight to the repositories.
type TrafficService struct {
	Cameras     repository.CameraRepository
	Signals     repository.SignalRepository
	Analytics   repository.AnalyticsRepository
	Coordinator *coordinator.Coordinator
	Aggregator  *analytics.Aggregator

	cache    *redis.Client
	cacheTTL time.Duration
}

// New creates a new TrafficService instance. cache may be nil; dashboard
// views are then computed on every request.
func New(
	cameras repository.CameraRepository,
	signals repository.SignalRepository,
	samples repository.AnalyticsRepository,
	coord *coordinator.Coordinator,
	aggregator *analytics.Aggregator,
	cache *redis.Client,
	cacheTTL time.Duration,
) *TrafficService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &TrafficService{
		Cameras:     cameras,
		Signals:     signals,
		Analytics:   samples,
		Coordinator: coord,
		Aggregator:  aggregator,
		cache:       cache,
		cacheTTL:    cacheTTL,
	}
}

// Validate checks if all required dependencies are initialized
func (s *TrafficService) Validate() error {
	if s.Cameras == nil {
		return ErrMissingDependency("cameras")
	}
	if s.Signals == nil {
		return ErrMissingDependency("signals")
	}
	if s.Analytics == nil {
		return ErrMissingDependency("analytics")
	}
	if s.Coordinator == nil {
		return ErrMissingDependency("coordinator")
	}
	if s.Aggregator == nil {
		return ErrMissingDependency("aggregator")
	}
	return nil
}

func ErrMissingDependency(name string) error {
	return errors.NewInternalError("missing dependency: "+name, nil)
}

// Snapshot is the full initial state sent to a dashboard on (re)connect.
// It covers the gap left by the bus's at-most-once delivery.
type Snapshot struct {
	Cameras   []*models.Camera        `json:"cameras"`
	Signals   []*models.Signal        `json:"signals"`
	Analytics *models.AnalyticsRollup `json:"analytics"`
}

// GetSnapshot assembles the initialData payload.
func (s *TrafficService) GetSnapshot(ctx context.Context) (*Snapshot, error) {
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
	return &Snapshot{Cameras: cameras, Signals: signals, Analytics: rollup}, nil
}
