// FilePath: internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"crypto/subtle"
	"reflect"
	"time"

	"github.com/itsatony/struccy"
	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/internal/bus"
	"github.com/prajukk/backed-traffic/internal/cleanup"
	"github.com/prajukk/backed-traffic/internal/errors"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/repository"
)

// SampleSink receives telemetry samples for analytics aggregation. Submit is
// non-blocking; a false return means the sample was dropped. Sink failures
// never propagate to the telemetry caller.
type SampleSink interface {
	Submit(sample models.AnalyticsSample) bool
}

// Coordinator is the single chokepoint for device mutations: every accepted
// mutation is durably applied to the store, echoed back in its canonical
// stored form, and broadcast exactly once per mutation to the right rooms.
//
// There is no cross-request serialization per device id: concurrent mutations
// race at the store and the later write wins (see repository.CameraRepository).
type Coordinator struct {
	cameras   repository.CameraRepository
	signals   repository.SignalRepository
	analytics repository.AnalyticsRepository
	cleanup   *cleanup.Service
	bus       *bus.Bus
	sink      SampleSink
	deviceKey []byte
}

// New creates a Coordinator. deviceKey is the process-wide shared secret
// devices present on connect.
func New(
	cameras repository.CameraRepository,
	signals repository.SignalRepository,
	analytics repository.AnalyticsRepository,
	b *bus.Bus,
	sink SampleSink,
	deviceKey string,
) *Coordinator {
	c := &Coordinator{
		cameras:   cameras,
		signals:   signals,
		analytics: analytics,
		bus:       b,
		sink:      sink,
		deviceKey: []byte(deviceKey),
	}
	c.cleanup = cleanup.New(cameras, signals, analytics)
	return c
}

// Cleanup exposes the cascade-deletion service so callers can register
// observers for deletion events.
func (c *Coordinator) Cleanup() *cleanup.Service {
	return c.cleanup
}

// Control-relevant fields. A REST update that touches any of these triggers a
// second, narrower configUpdate publish to the device-scoped room.
var (
	cameraControlFields = map[string]bool{"Settings": true}
	signalControlFields = map[string]bool{
		"Mode":          true,
		"CurrentPhase":  true,
		"RemainingTime": true,
		"Settings":      true,
	}
)

// CreateCamera persists a new camera with defaults applied and announces it
// to the admin room.
func (c *Coordinator) CreateCamera(ctx context.Context, camera *models.Camera) error {
	if camera.Name == "" {
		return errors.NewValidationError("camera name is required", nil)
	}
	if camera.ID == "" {
		camera.ID = nuts.NID("cam", 12)
	}
	now := time.Now()
	camera.CreatedAt = now
	camera.UpdatedAt = now
	if camera.Status == "" {
		camera.Status = models.StatusOffline
	}
	if camera.LastSeen.IsZero() {
		camera.LastSeen = now
	}

	nuts.L.Infof("[Coordinator] Creating camera %s (%s)", camera.Name, camera.ID)
	if err := c.cameras.Create(ctx, camera); err != nil {
		return err
	}
	c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventCameraUpdate, Data: camera})
	return nil
}

// CreateSignal persists a new signal with defaults applied and announces it
// to the admin room.
func (c *Coordinator) CreateSignal(ctx context.Context, signal *models.Signal) error {
	if signal.Name == "" {
		return errors.NewValidationError("signal name is required", nil)
	}
	if signal.ID == "" {
		signal.ID = nuts.NID("sig", 12)
	}
	now := time.Now()
	signal.CreatedAt = now
	signal.UpdatedAt = now
	if signal.Status == "" {
		signal.Status = models.StatusOffline
	}
	if signal.Mode == "" {
		signal.Mode = models.ModeScheduled
	}
	if signal.CongestionLevel == "" {
		signal.CongestionLevel = models.CongestionLow
	}
	if signal.LastSeen.IsZero() {
		signal.LastSeen = now
	}

	nuts.L.Infof("[Coordinator] Creating signal %s (%s)", signal.Name, signal.ID)
	if err := c.signals.Create(ctx, signal); err != nil {
		return err
	}
	c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventSignalUpdate, Data: signal})
	return nil
}

// UpdateCamera applies a sparse patch to a camera. Unknown fields were
// already dropped by JSON decoding; zero-valued patch fields are ignored.
// The returned record is the canonical stored form and is byte-identical to
// the admin broadcast payload. Settings changes additionally publish a
// configUpdate to the camera's own room.
func (c *Coordinator) UpdateCamera(ctx context.Context, id string, patch *models.Camera, roles []string) (*models.Camera, error) {
	updated, changed, err := c.applyCameraPatch(ctx, id, patch, roles)
	if err != nil {
		return nil, err
	}

	if hasControlField(changed, cameraControlFields) {
		c.bus.Publish(bus.DeviceRoom(models.KindCamera, id), bus.Message{
			Event: bus.EventConfigUpdate,
			Data:  models.CameraConfigUpdate{Settings: updated.Settings},
		})
	}
	return updated, nil
}

// UpdateSignal applies a sparse patch to a signal. Control-relevant changes
// (mode, phase, settings) publish a configUpdate to the signal's own room
// containing exactly mode, currentPhase and remainingTime.
func (c *Coordinator) UpdateSignal(ctx context.Context, id string, patch *models.Signal, roles []string) (*models.Signal, error) {
	updated, changed, err := c.applySignalPatch(ctx, id, patch, roles)
	if err != nil {
		return nil, err
	}

	if hasControlField(changed, signalControlFields) {
		c.bus.Publish(bus.DeviceRoom(models.KindSignal, id), bus.Message{
			Event: bus.EventConfigUpdate,
			Data: models.SignalConfigUpdate{
				Mode:          updated.Mode,
				CurrentPhase:  updated.CurrentPhase,
				RemainingTime: updated.RemainingTime,
			},
		})
	}
	return updated, nil
}

// ControlCamera handles a cameraControl live-channel command: the settings
// are persisted like any update and the raw command is forwarded to the
// camera's own room as a controlCommand for the device to execute.
func (c *Coordinator) ControlCamera(ctx context.Context, id string, settings models.CameraSettings, roles []string) (*models.Camera, error) {
	patch := &models.Camera{Settings: settings}
	updated, _, err := c.applyCameraPatch(ctx, id, patch, roles)
	if err != nil {
		return nil, err
	}

	c.bus.Publish(bus.DeviceRoom(models.KindCamera, id), bus.Message{
		Event: bus.EventControlCommand,
		Data:  models.CameraConfigUpdate{Settings: updated.Settings},
	})
	return updated, nil
}

// ControlSignal handles a signalControl live-channel command.
func (c *Coordinator) ControlSignal(ctx context.Context, id string, patch *models.Signal, roles []string) (*models.Signal, error) {
	updated, _, err := c.applySignalPatch(ctx, id, patch, roles)
	if err != nil {
		return nil, err
	}

	c.bus.Publish(bus.DeviceRoom(models.KindSignal, id), bus.Message{
		Event: bus.EventControlCommand,
		Data: models.SignalConfigUpdate{
			Mode:          updated.Mode,
			CurrentPhase:  updated.CurrentPhase,
			RemainingTime: updated.RemainingTime,
		},
	})
	return updated, nil
}

// DeleteCamera removes a camera and notifies the admin room with an id-only
// deletion notice. A missing id yields NotFound and no broadcast.
func (c *Coordinator) DeleteCamera(ctx context.Context, id string) error {
	if err := c.cleanup.DeleteCamera(ctx, id); err != nil {
		return err
	}
	c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventCameraDeleted, Data: map[string]string{"id": id}})
	return nil
}

// DeleteSignal removes a signal and its analytics samples and notifies the
// admin room.
func (c *Coordinator) DeleteSignal(ctx context.Context, id string) error {
	if err := c.cleanup.DeleteSignal(ctx, id); err != nil {
		return err
	}
	c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventSignalRemoved, Data: map[string]string{"id": id}})
	return nil
}

// HandleTelemetry applies a device-pushed metrics payload: lastSeen is
// refreshed, the metrics block is replaced wholesale, and signals promote
// currentPhase/remainingTime from the payload. The updated record always
// goes to the admin room. Camera telemetry additionally forwards a sample to
// the analytics sink; a sink failure never fails the telemetry ack.
func (c *Coordinator) HandleTelemetry(ctx context.Context, kind models.DeviceKind, id string, payload models.TelemetryPayload) error {
	now := time.Now()

	switch kind {
	case models.KindCamera:
		camera, err := c.cameras.Get(ctx, id)
		if err != nil {
			return err
		}
		metrics := payload.Metrics()
		camera.LastSeen = now
		camera.Metrics = &metrics
		camera.UpdatedAt = now
		if err := c.cameras.Update(ctx, camera); err != nil {
			return err
		}
		c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventCameraUpdate, Data: camera})

		sample := models.AnalyticsSample{
			Timestamp:       now,
			TrafficVolume:   payload.VehicleCount,
			CongestionLevel: payload.CongestionLevel,
			AverageSpeed:    payload.AverageSpeed,
			VehicleTypes:    payload.VehicleTypes,
		}
		if !c.sink.Submit(sample) {
			nuts.L.Warnf("[Coordinator] Analytics sink full, dropping sample from camera %s", id)
		}
		return nil

	case models.KindSignal:
		signal, err := c.signals.Get(ctx, id)
		if err != nil {
			return err
		}
		signal.LastSeen = now
		signal.UpdatedAt = now
		if payload.CongestionLevel != "" {
			signal.CongestionLevel = payload.CongestionLevel
		}
		if payload.CurrentPhase != "" {
			signal.CurrentPhase = payload.CurrentPhase
		}
		if payload.RemainingTime != "" {
			signal.RemainingTime = payload.RemainingTime
		}
		if err := c.signals.Update(ctx, signal); err != nil {
			return err
		}
		c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventSignalUpdate, Data: signal})
		return nil
	}

	return errors.NewValidationError("unknown device kind", nil)
}

// HandleConnect validates a device's shared-secret credential and, on
// success, joins the connection to the device-scoped room, flips the device
// online, refreshes lastSeen and announces the record to the admin room.
// A wrong secret fails with Unauthorized and changes nothing.
//
// This is a plain secret-equality check, not an authentication protocol; the
// surrounding network is assumed internal.
func (c *Coordinator) HandleConnect(ctx context.Context, kind models.DeviceKind, id, apiKey string, client *bus.Client) error {
	if subtle.ConstantTimeCompare([]byte(apiKey), c.deviceKey) != 1 {
		return errors.NewAuthError("invalid device credentials", nil)
	}

	now := time.Now()
	switch kind {
	case models.KindCamera:
		camera, err := c.cameras.Get(ctx, id)
		if err != nil {
			return err
		}
		camera.Status = models.StatusOnline
		camera.LastSeen = now
		camera.UpdatedAt = now
		if err := c.cameras.Update(ctx, camera); err != nil {
			return err
		}
		c.bus.Join(bus.DeviceRoom(kind, id), client)
		nuts.L.Infof("[Coordinator] Camera %s connected", id)
		c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventCameraUpdate, Data: camera})
		return nil

	case models.KindSignal:
		signal, err := c.signals.Get(ctx, id)
		if err != nil {
			return err
		}
		signal.Status = models.StatusOnline
		signal.LastSeen = now
		signal.UpdatedAt = now
		if err := c.signals.Update(ctx, signal); err != nil {
			return err
		}
		c.bus.Join(bus.DeviceRoom(kind, id), client)
		nuts.L.Infof("[Coordinator] Signal %s connected", id)
		c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventSignalUpdate, Data: signal})
		return nil
	}

	return errors.NewValidationError("unknown device kind", nil)
}

// applyCameraPatch is the shared read-modify-write path for camera patches.
// struccy skips zero-valued patch fields and fields the caller's roles cannot
// write, so changed is computed by diffing the stored record, not taken from
// struccy's bookkeeping (which records skipped zero-value fields as updated).
func (c *Coordinator) applyCameraPatch(ctx context.Context, id string, patch *models.Camera, roles []string) (*models.Camera, []string, error) {
	existing, err := c.cameras.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	before := *existing

	if _, _, err := struccy.UpdateStructFields(existing, patch, roles, true, true); err != nil {
		return nil, nil, errors.NewValidationError("invalid field update", err)
	}
	changed := changedFields(&before, existing)

	existing.UpdatedAt = time.Now()
	if err := c.cameras.Update(ctx, existing); err != nil {
		return nil, nil, err
	}

	nuts.L.Infof("[Coordinator] Updated camera %s, fields changed: %v", id, changed)
	c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventCameraUpdate, Data: existing})
	return existing, changed, nil
}

// applySignalPatch is the shared read-modify-write path for signal patches.
func (c *Coordinator) applySignalPatch(ctx context.Context, id string, patch *models.Signal, roles []string) (*models.Signal, []string, error) {
	existing, err := c.signals.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	before := *existing

	if _, _, err := struccy.UpdateStructFields(existing, patch, roles, true, true); err != nil {
		return nil, nil, errors.NewValidationError("invalid field update", err)
	}
	changed := changedFields(&before, existing)

	existing.UpdatedAt = time.Now()
	if err := c.signals.Update(ctx, existing); err != nil {
		return nil, nil, err
	}

	nuts.L.Infof("[Coordinator] Updated signal %s, fields changed: %v", id, changed)
	c.bus.Publish(bus.AdminRoom, bus.Message{Event: bus.EventSignalUpdate, Data: existing})
	return existing, changed, nil
}

// changedFields lists the exported fields whose stored values differ between
// two records of the same struct type. Both arguments must be struct pointers.
func changedFields(before, after any) []string {
	bv := reflect.ValueOf(before).Elem()
	av := reflect.ValueOf(after).Elem()
	t := bv.Type()

	var changed []string
	for i := 0; i < t.NumField(); i++ {
		if !reflect.DeepEqual(bv.Field(i).Interface(), av.Field(i).Interface()) {
			changed = append(changed, t.Field(i).Name)
		}
	}
	return changed
}

func hasControlField(changed []string, control map[string]bool) bool {
	for _, f := range changed {
		if control[f] {
			return true
		}
	}
	return false
}
