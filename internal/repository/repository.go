// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/prajukk/backed-traffic/internal/database"
	"github.com/prajukk/backed-traffic/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// CameraRepository defines the interface for camera record operations.
//
// Update is last-write-wins: there is no version column and concurrent
// updates to the same id interleave at the store; the later commit overwrites
// the earlier one. Callers that need stronger guarantees must swap in a
// versioned implementation behind this interface.
type CameraRepository interface {
	database.Repository
	Create(ctx context.Context, camera *models.Camera) error
	Get(ctx context.Context, id string) (*models.Camera, error)
	Update(ctx context.Context, camera *models.Camera) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters models.DeviceFilters, offset, limit int) ([]*models.Camera, error)
	UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error
	SetStatus(ctx context.Context, id string, status models.DeviceStatus) error
}

// SignalRepository defines the interface for signal record operations.
// Update carries the same last-write-wins contract as CameraRepository.
type SignalRepository interface {
	database.Repository
	Create(ctx context.Context, signal *models.Signal) error
	Get(ctx context.Context, id string) (*models.Signal, error)
	Update(ctx context.Context, signal *models.Signal) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters models.DeviceFilters, offset, limit int) ([]*models.Signal, error)
	UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error
	SetStatus(ctx context.Context, id string, status models.DeviceStatus) error
}

// AnalyticsRepository defines the interface for append-only telemetry samples.
type AnalyticsRepository interface {
	database.Repository
	InsertSample(ctx context.Context, sample *models.AnalyticsSample) error
	SamplesSince(ctx context.Context, since time.Time) ([]models.AnalyticsSample, error)
	SamplesBetween(ctx context.Context, start, end time.Time) ([]models.AnalyticsSample, error)
	SamplesByJunction(ctx context.Context, junctionID string, start, end time.Time) ([]models.AnalyticsSample, error)
	DeleteByJunction(ctx context.Context, junctionID string, tx database.Transaction) error
	DeleteOldSamples(ctx context.Context, before time.Time) error
}
