// FilePath: internal/analytics/aggregator.go
package analytics

import (
	"context"
	"sort"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/internal/bus"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/repository"
)

// rollupWindow is the trailing window for live aggregation.
const rollupWindow = 24 * time.Hour

// Aggregator turns raw telemetry samples into durable AnalyticsSample
// records and a refreshed rolling aggregate broadcast to the admin room.
//
// Samples arrive over a buffered channel and are processed by Run's
// goroutine, so telemetry handling never waits on aggregation and an
// aggregation failure cannot fail the telemetry ack that produced it.
//
// The rollup recomputes over the full trailing window on every sample,
// O(window size) per event. Acceptable at small device counts; a known
// scaling limit, not redesigned away.
type Aggregator struct {
	samples repository.AnalyticsRepository
	bus     *bus.Bus
	intake  chan models.AnalyticsSample
	now     func() time.Time
}

// New creates an Aggregator with the given intake buffer size.
func New(samples repository.AnalyticsRepository, b *bus.Bus, buffer int) *Aggregator {
	if buffer <= 0 {
		buffer = 256
	}
	return &Aggregator{
		samples: samples,
		bus:     b,
		intake:  make(chan models.AnalyticsSample, buffer),
		now:     time.Now,
	}
}

// Submit queues a sample for aggregation. Non-blocking; returns false when
// the intake buffer is full and the sample was dropped.
func (a *Aggregator) Submit(sample models.AnalyticsSample) bool {
	select {
	case a.intake <- sample:
		return true
	default:
		return false
	}
}

// Run consumes the intake channel until the context is canceled.
func (a *Aggregator) Run(ctx context.Context) {
	nuts.L.Infof("[Analytics] Aggregator started")
	for {
		select {
		case <-ctx.Done():
			nuts.L.Infof("[Analytics] Aggregator stopped: %v", ctx.Err())
			return
		case sample := <-a.intake:
			a.process(ctx, sample)
		}
	}
}

// process persists one sample and broadcasts the refreshed rollup. Failures
// are logged and isolated; other subscribers simply never see the update.
func (a *Aggregator) process(ctx context.Context, sample models.AnalyticsSample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = a.now()
	}
	if err := a.samples.InsertSample(ctx, &sample); err != nil {
		nuts.L.Errorf("[Analytics] Failed to persist sample: %v", err)
		return
	}

	rollup, err := a.Rollup(ctx)
	if err != nil {
		nuts.L.Errorf("[Analytics] Failed to compute rollup: %v", err)
		return
	}

	a.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventAnalyticsUpdate, Data: rollup})
}

// Rollup computes the trailing 24-hour aggregate: mean traffic volume, mean
// average speed, and the raw collected congestion-label and vehicle-type
// lists. Consumers bucket the raw lists themselves.
func (a *Aggregator) Rollup(ctx context.Context) (*models.AnalyticsRollup, error) {
	end := a.now()
	start := end.Add(-rollupWindow)

	samples, err := a.samples.SamplesSince(ctx, start)
	if err != nil {
		return nil, err
	}

	rollup := &models.AnalyticsRollup{
		WindowStart:      start,
		WindowEnd:        end,
		SampleCount:      len(samples),
		CongestionLevels: make([]models.CongestionLevel, 0, len(samples)),
		VehicleTypes:     make([]models.VehicleTypeMap, 0, len(samples)),
	}

	var volumeSum, speedSum float64
	for _, s := range samples {
		volumeSum += float64(s.TrafficVolume)
		speedSum += s.AverageSpeed
		rollup.CongestionLevels = append(rollup.CongestionLevels, s.CongestionLevel)
		rollup.VehicleTypes = append(rollup.VehicleTypes, s.VehicleTypes)
	}
	if len(samples) > 0 {
		rollup.AvgTrafficVolume = volumeSum / float64(len(samples))
		rollup.AvgSpeed = speedSum / float64(len(samples))
	}

	return rollup, nil
}

// HourlyTrend groups the trailing 24 hours of samples by clock hour,
// averaging traffic volume and mapping the averaged congestion severity
// score back to a label (<1.5 Low, <2.5 Moderate, else High).
func (a *Aggregator) HourlyTrend(ctx context.Context) ([]models.HourlyTrendBucket, error) {
	end := a.now()
	start := end.Add(-rollupWindow)

	samples, err := a.samples.SamplesSince(ctx, start)
	if err != nil {
		return nil, err
	}

	type acc struct {
		volumeSum float64
		scoreSum  float64
		count     int
	}
	// Bucket keys are normalized to UTC: time.Time map equality is
	// Location-sensitive, and sample timestamps come back from the store in
	// UTC regardless of the server's zone.
	buckets := make(map[time.Time]*acc)
	for _, s := range samples {
		hour := s.Timestamp.UTC().Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &acc{}
			buckets[hour] = b
		}
		b.volumeSum += float64(s.TrafficVolume)
		b.scoreSum += s.CongestionLevel.Score()
		b.count++
	}

	hours := make([]time.Time, 0, len(buckets))
	for hour := range buckets {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	trend := make([]models.HourlyTrendBucket, 0, len(hours))
	for _, hour := range hours {
		b := buckets[hour]
		trend = append(trend, models.HourlyTrendBucket{
			Hour:            hour,
			AvgVolume:       b.volumeSum / float64(b.count),
			SampleCount:     b.count,
			CongestionLevel: models.CongestionFromScore(b.scoreSum / float64(b.count)),
		})
	}
	return trend, nil
}
