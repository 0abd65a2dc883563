// FilePath: internal/repository/postgres/postgres.camera.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/prajukk/backed-traffic/internal/database"
	"github.com/prajukk/backed-traffic/internal/errors"
	"github.com/prajukk/backed-traffic/internal/models"
)

type CameraRepo struct {
	PostgresBaseRepo
}

func NewCameraRepository(db database.DB) *CameraRepo {
	repo := &PostgresBaseRepo{db: db}
	return &CameraRepo{PostgresBaseRepo: *repo}
}

func (r *CameraRepo) Create(ctx context.Context, camera *models.Camera) error {
	query := `
		INSERT INTO cameras (
			id, name, location, latitude, longitude,
			status, last_seen, model, firmware, resolution, frame_rate,
			settings, metrics, created_at, updated_at
		) VALUES (
			:id, :name, :location, :latitude, :longitude,
			:status, :last_seen, :model, :firmware, :resolution, :frame_rate,
			:settings, :metrics, :created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, camera)
	if err != nil {
		return errors.NewDatabaseError("failed to create camera", err)
	}
	return nil
}

func (r *CameraRepo) Get(ctx context.Context, id string) (*models.Camera, error) {
	camera := &models.Camera{}
	query := `SELECT * FROM cameras WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, camera, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("camera not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get camera", err)
	}
	return camera, nil
}

// Update persists the full record. Last write wins; there is no version check.
func (r *CameraRepo) Update(ctx context.Context, camera *models.Camera) error {
	query := `
		UPDATE cameras SET
			name = :name,
			location = :location,
			latitude = :latitude,
			longitude = :longitude,
			status = :status,
			last_seen = :last_seen,
			model = :model,
			firmware = :firmware,
			resolution = :resolution,
			frame_rate = :frame_rate,
			settings = :settings,
			metrics = :metrics,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, camera)
	if err != nil {
		return errors.NewDatabaseError("failed to update camera", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("camera not found", nil)
	}

	return nil
}

func (r *CameraRepo) UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	query := `UPDATE cameras SET last_seen = $1 WHERE id = $2`
	result, err := r.db.GetDB().ExecContext(ctx, query, lastSeen, id)
	if err != nil {
		return errors.NewDatabaseError("failed to update last seen", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("camera not found", nil)
	}

	return nil
}

func (r *CameraRepo) SetStatus(ctx context.Context, id string, status models.DeviceStatus) error {
	query := `UPDATE cameras SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.GetDB().ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return errors.NewDatabaseError("failed to set camera status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("camera not found", nil)
	}

	return nil
}

func (r *CameraRepo) List(ctx context.Context, filters models.DeviceFilters, offset, limit int) ([]*models.Camera, error) {
	cameras := []*models.Camera{}
	query := `SELECT * FROM cameras WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR location ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`

	err := r.db.GetDB().SelectContext(ctx, &cameras, query, string(filters.Status), filters.Search, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list cameras", err)
	}

	return cameras, nil
}

func (r *CameraRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM cameras WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete camera", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("camera not found", nil)
	}

	return nil
}
