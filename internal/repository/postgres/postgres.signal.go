// FilePath: internal/repository/postgres/postgres.signal.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/prajukk/backed-traffic/internal/database"
	"github.com/prajukk/backed-traffic/internal/errors"
	"github.com/prajukk/backed-traffic/internal/models"
)

type SignalRepo struct {
	PostgresBaseRepo
}

func NewSignalRepository(db database.DB) *SignalRepo {
	repo := &PostgresBaseRepo{db: db}
	return &SignalRepo{PostgresBaseRepo: *repo}
}

func (r *SignalRepo) Create(ctx context.Context, signal *models.Signal) error {
	query := `
		INSERT INTO signals (
			id, name, location, latitude, longitude,
			status, last_seen, mode, current_phase, remaining_time,
			congestion_level, settings, created_at, updated_at
		) VALUES (
			:id, :name, :location, :latitude, :longitude,
			:status, :last_seen, :mode, :current_phase, :remaining_time,
			:congestion_level, :settings, :created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, signal)
	if err != nil {
		return errors.NewDatabaseError("failed to create signal", err)
	}
	return nil
}

func (r *SignalRepo) Get(ctx context.Context, id string) (*models.Signal, error) {
	signal := &models.Signal{}
	query := `SELECT * FROM signals WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, signal, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("signal not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get signal", err)
	}
	return signal, nil
}

// Update persists the full record. Last write wins; there is no version check.
func (r *SignalRepo) Update(ctx context.Context, signal *models.Signal) error {
	query := `
		UPDATE signals SET
			name = :name,
			location = :location,
			latitude = :latitude,
			longitude = :longitude,
			status = :status,
			last_seen = :last_seen,
			mode = :mode,
			current_phase = :current_phase,
			remaining_time = :remaining_time,
			congestion_level = :congestion_level,
			settings = :settings,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, signal)
	if err != nil {
		return errors.NewDatabaseError("failed to update signal", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("signal not found", nil)
	}

	return nil
}

func (r *SignalRepo) UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	query := `UPDATE signals SET last_seen = $1 WHERE id = $2`
	result, err := r.db.GetDB().ExecContext(ctx, query, lastSeen, id)
	if err != nil {
		return errors.NewDatabaseError("failed to update last seen", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("signal not found", nil)
	}

	return nil
}

func (r *SignalRepo) SetStatus(ctx context.Context, id string, status models.DeviceStatus) error {
	query := `UPDATE signals SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.GetDB().ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return errors.NewDatabaseError("failed to set signal status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("signal not found", nil)
	}

	return nil
}

func (r *SignalRepo) List(ctx context.Context, filters models.DeviceFilters, offset, limit int) ([]*models.Signal, error) {
	signals := []*models.Signal{}
	query := `SELECT * FROM signals WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR location ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`

	err := r.db.GetDB().SelectContext(ctx, &signals, query, string(filters.Status), filters.Search, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list signals", err)
	}

	return signals, nil
}

func (r *SignalRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM signals WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete signal", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("signal not found", nil)
	}

	return nil
}
