// FilePath: internal/repository/timescale/timescale.analytics.go
package timescale

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/internal/database"
	"github.com/prajukk/backed-traffic/internal/errors"
	"github.com/prajukk/backed-traffic/internal/models"
)

type AnalyticsRepo struct {
	db database.DB
}

func NewAnalyticsRepository(db database.DB) (*AnalyticsRepo, error) {
	repo := &AnalyticsRepo{db: db}
	err := repo.initializeSchema()
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *AnalyticsRepo) initializeSchema() error {
	// Create hypertable for analytics samples
	queries := []string{
		`CREATE TABLE IF NOT EXISTS analytics_samples (
			id TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			traffic_volume INTEGER NOT NULL,
			congestion_level TEXT NOT NULL,
			average_speed DOUBLE PRECISION NOT NULL,
			vehicle_types JSONB NOT NULL DEFAULT '{}',
			junction_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (id, timestamp)
		)`,
		`SELECT create_hypertable('analytics_samples', 'timestamp',
			chunk_time_interval => INTERVAL '1 day',
			if_not_exists => TRUE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_samples_junction_timestamp
         ON analytics_samples(junction_id, timestamp DESC)`,
	}

	for _, query := range queries {
		_, err := r.db.GetDB().Exec(query)
		if err != nil {
			return errors.NewDatabaseError("failed to initialize schema", err)
		}
	}

	r.setupRetentionPolicy()
	return nil
}

func (r *AnalyticsRepo) setupRetentionPolicy() {
	query := `
		SELECT add_retention_policy('analytics_samples',
			INTERVAL '90 days',
			if_not_exists => TRUE
		)`

	_, err := r.db.GetDB().Exec(query)
	if err != nil {
		nuts.L.Errorf("[TimescaleDB] Failed to set up retention policy: %v", err)
	}
}

func (r *AnalyticsRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := r.db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to begin transaction", err)
	}
	return tx, nil
}

func (r *AnalyticsRepo) InsertSample(ctx context.Context, sample *models.AnalyticsSample) error {
	if sample.ID == "" {
		sample.ID = nuts.NID("smp", 12)
	}
	query := `
		INSERT INTO analytics_samples (
			id, timestamp, traffic_volume, congestion_level,
			average_speed, vehicle_types, junction_id
		) VALUES (
			:id, :timestamp, :traffic_volume, :congestion_level,
			:average_speed, :vehicle_types, :junction_id
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, sample)
	if err != nil {
		return errors.NewDatabaseError("failed to insert analytics sample", err)
	}
	return nil
}

func (r *AnalyticsRepo) SamplesSince(ctx context.Context, since time.Time) ([]models.AnalyticsSample, error) {
	samples := []models.AnalyticsSample{}
	query := `
		SELECT id, timestamp, traffic_volume, congestion_level,
			average_speed, vehicle_types, junction_id
		FROM analytics_samples
		WHERE timestamp >= $1
		ORDER BY timestamp ASC`

	err := r.db.GetDB().SelectContext(ctx, &samples, query, since)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to query samples", err)
	}
	return samples, nil
}

func (r *AnalyticsRepo) SamplesBetween(ctx context.Context, start, end time.Time) ([]models.AnalyticsSample, error) {
	samples := []models.AnalyticsSample{}
	query := `
		SELECT id, timestamp, traffic_volume, congestion_level,
			average_speed, vehicle_types, junction_id
		FROM analytics_samples
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC`

	err := r.db.GetDB().SelectContext(ctx, &samples, query, start, end)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to query samples", err)
	}
	return samples, nil
}

func (r *AnalyticsRepo) SamplesByJunction(ctx context.Context, junctionID string, start, end time.Time) ([]models.AnalyticsSample, error) {
	samples := []models.AnalyticsSample{}
	query := `
		SELECT id, timestamp, traffic_volume, congestion_level,
			average_speed, vehicle_types, junction_id
		FROM analytics_samples
		WHERE junction_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC`

	err := r.db.GetDB().SelectContext(ctx, &samples, query, junctionID, start, end)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to query junction samples", err)
	}
	return samples, nil
}

func (r *AnalyticsRepo) DeleteByJunction(ctx context.Context, junctionID string, tx database.Transaction) error {
	query := `DELETE FROM analytics_samples WHERE junction_id = $1`

	if tx != nil {
		if _, err := tx.ExecContext(ctx, query, junctionID); err != nil {
			return errors.NewDatabaseError("failed to delete junction samples", err)
		}
		return nil
	}

	if _, err := r.db.GetDB().ExecContext(ctx, query, junctionID); err != nil {
		return errors.NewDatabaseError("failed to delete junction samples", err)
	}
	return nil
}

func (r *AnalyticsRepo) DeleteOldSamples(ctx context.Context, before time.Time) error {
	query := `DELETE FROM analytics_samples WHERE timestamp < $1`

	if _, err := r.db.GetDB().ExecContext(ctx, query, before); err != nil {
		return errors.NewDatabaseError("failed to delete old samples", err)
	}
	return nil
}
