// FilePath: internal/simulator/simulator.go
package simulator

import (
	"context"
	"math/rand"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/internal/coordinator"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/repository"
)

var phases = []string{"North-South Green", "East-West Green", "Left-Turn Protected", "All-Way Red"}

var vehicleClasses = []string{"car", "truck", "bus", "motorcycle"}

// Simulator periodically generates plausible telemetry for known devices and
// routes it through the coordinator, so simulated updates broadcast and feed
// analytics exactly like device-pushed ones. It is an explicit, cancelable
// task: cancel the context passed to Run and it stops.
type Simulator struct {
	cameras  repository.CameraRepository
	signals  repository.SignalRepository
	coord    *coordinator.Coordinator
	interval time.Duration
	rng      *rand.Rand
}

// New creates a Simulator ticking at the given interval.
func New(
	cameras repository.CameraRepository,
	signals repository.SignalRepository,
	coord *coordinator.Coordinator,
	interval time.Duration,
) *Simulator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Simulator{
		cameras:  cameras,
		signals:  signals,
		coord:    coord,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Demo fleet created by Seed on an empty store.
var seedCameras = []models.Camera{
	{Name: "Main St & 1st Ave", Location: "Downtown", Latitude: 40.7128, Longitude: -74.0060, Model: "AXIS P1468-LE", Resolution: "1920x1080", FrameRate: 30},
	{Name: "Main St & 5th Ave", Location: "Downtown", Latitude: 40.7145, Longitude: -74.0021, Model: "AXIS P1468-LE", Resolution: "1920x1080", FrameRate: 30},
	{Name: "Riverside Dr & Oak St", Location: "Riverside", Latitude: 40.7211, Longitude: -74.0155, Model: "Hikvision DS-2CD5A85", Resolution: "3840x2160", FrameRate: 25},
	{Name: "Harbor Blvd & Pine St", Location: "Harbor District", Latitude: 40.7052, Longitude: -74.0190, Model: "Hikvision DS-2CD5A85", Resolution: "3840x2160", FrameRate: 25},
	{Name: "Market St & 3rd Ave", Location: "Market Quarter", Latitude: 40.7166, Longitude: -73.9981, Model: "AXIS Q1798-LE", Resolution: "1920x1080", FrameRate: 60},
	{Name: "Industrial Pkwy & Elm St", Location: "Industrial Park", Latitude: 40.7304, Longitude: -74.0098, Model: "AXIS Q1798-LE", Resolution: "1920x1080", FrameRate: 60},
}

var seedSignals = []models.Signal{
	{Name: "Main St & 1st Ave Junction", Location: "Downtown", Latitude: 40.7127, Longitude: -74.0061, Mode: models.ModeAI},
	{Name: "Main St & 5th Ave Junction", Location: "Downtown", Latitude: 40.7144, Longitude: -74.0022, Mode: models.ModeAI},
	{Name: "Riverside Dr Junction", Location: "Riverside", Latitude: 40.7210, Longitude: -74.0156, Mode: models.ModeScheduled},
	{Name: "Harbor Blvd Junction", Location: "Harbor District", Latitude: 40.7051, Longitude: -74.0191, Mode: models.ModeScheduled},
}

// Seed creates the demo fleet through the coordinator when the store holds no
// devices yet, so demo deployments have something to simulate. A store with
// any existing device is left untouched, making Seed safe on every start.
func (s *Simulator) Seed(ctx context.Context) error {
	cameras, err := s.cameras.List(ctx, models.DeviceFilters{}, 0, 1)
	if err != nil {
		return err
	}
	signals, err := s.signals.List(ctx, models.DeviceFilters{}, 0, 1)
	if err != nil {
		return err
	}
	if len(cameras) > 0 || len(signals) > 0 {
		nuts.L.Infof("[Simulator] Store already holds devices, skipping demo seed")
		return nil
	}

	for i := range seedCameras {
		camera := seedCameras[i]
		if err := s.coord.CreateCamera(ctx, &camera); err != nil {
			return err
		}
	}
	for i := range seedSignals {
		signal := seedSignals[i]
		if err := s.coord.CreateSignal(ctx, &signal); err != nil {
			return err
		}
	}
	nuts.L.Infof("[Simulator] Seeded demo fleet: %d cameras, %d signals", len(seedCameras), len(seedSignals))
	return nil
}

// Run ticks until the context is canceled.
func (s *Simulator) Run(ctx context.Context) {
	nuts.L.Infof("[Simulator] Started, interval %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			nuts.L.Infof("[Simulator] Stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Simulator) tick(ctx context.Context) {
	cameras, err := s.cameras.List(ctx, models.DeviceFilters{}, 0, 100)
	if err != nil {
		nuts.L.Warnf("[Simulator] Failed to list cameras: %v", err)
		return
	}
	signals, err := s.signals.List(ctx, models.DeviceFilters{}, 0, 100)
	if err != nil {
		nuts.L.Warnf("[Simulator] Failed to list signals: %v", err)
		return
	}
	total := len(cameras) + len(signals)
	if total == 0 {
		return
	}

	pick := s.rng.Intn(total)
	if pick < len(cameras) {
		camera := cameras[pick]
		payload := s.cameraTelemetry()
		if err := s.coord.HandleTelemetry(ctx, models.KindCamera, camera.ID, payload); err != nil {
			nuts.L.Warnf("[Simulator] Camera %s telemetry failed: %v", camera.ID, err)
		}
		return
	}

	signal := signals[pick-len(cameras)]
	payload := s.signalTelemetry()
	if err := s.coord.HandleTelemetry(ctx, models.KindSignal, signal.ID, payload); err != nil {
		nuts.L.Warnf("[Simulator] Signal %s telemetry failed: %v", signal.ID, err)
	}
}

func (s *Simulator) cameraTelemetry() models.TelemetryPayload {
	count := 5 + s.rng.Intn(120)
	return models.TelemetryPayload{
		VehicleCount:    count,
		CongestionLevel: congestionFor(count),
		AverageSpeed:    15 + s.rng.Float64()*60,
		VehicleTypes:    s.vehicleBreakdown(count),
	}
}

func (s *Simulator) signalTelemetry() models.TelemetryPayload {
	count := 5 + s.rng.Intn(120)
	return models.TelemetryPayload{
		VehicleCount:    count,
		CongestionLevel: congestionFor(count),
		AverageSpeed:    10 + s.rng.Float64()*40,
		CurrentPhase:    phases[s.rng.Intn(len(phases))],
		RemainingTime:   time.Duration(time.Duration(5+s.rng.Intn(55)) * time.Second).String(),
	}
}

func (s *Simulator) vehicleBreakdown(total int) map[string]int {
	breakdown := make(map[string]int, len(vehicleClasses))
	remaining := total
	for i, class := range vehicleClasses {
		if i == len(vehicleClasses)-1 {
			breakdown[class] = remaining
			break
		}
		n := s.rng.Intn(remaining + 1)
		breakdown[class] = n
		remaining -= n
	}
	return breakdown
}

func congestionFor(count int) models.CongestionLevel {
	switch {
	case count < 40:
		return models.CongestionLow
	case count < 85:
		return models.CongestionModerate
	default:
		return models.CongestionHigh
	}
}
