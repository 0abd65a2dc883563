// FilePath: api/ws/ws_test.go
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajukk/backed-traffic/internal/bus"
	"github.com/prajukk/backed-traffic/internal/coordinator"
	"github.com/prajukk/backed-traffic/internal/database"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/repository"
)

const testDeviceKey = "test-device-key"

type wsCameraRepo struct {
	mu      sync.Mutex
	cameras map[string]models.Camera
}

func (r *wsCameraRepo) BeginTx(ctx context.Context) (database.Transaction, error) { return nil, nil }

func (r *wsCameraRepo) Create(_ context.Context, c *models.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cameras[c.ID] = *c
	return nil
}

func (r *wsCameraRepo) Get(_ context.Context, id string) (*models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cameras[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cc := c
	return &cc, nil
}

func (r *wsCameraRepo) Update(_ context.Context, c *models.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cameras[c.ID]; !ok {
		return repository.ErrNotFound
	}
	r.cameras[c.ID] = *c
	return nil
}

func (r *wsCameraRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cameras[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.cameras, id)
	return nil
}

func (r *wsCameraRepo) List(_ context.Context, _ models.DeviceFilters, _, _ int) ([]*models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Camera, 0, len(r.cameras))
	for id := range r.cameras {
		c := r.cameras[id]
		out = append(out, &c)
	}
	return out, nil
}

func (r *wsCameraRepo) UpdateLastSeen(_ context.Context, id string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cameras[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.LastSeen = lastSeen
	r.cameras[id] = c
	return nil
}

func (r *wsCameraRepo) SetStatus(_ context.Context, id string, status models.DeviceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cameras[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Status = status
	r.cameras[id] = c
	return nil
}

type wsSignalRepo struct {
	mu      sync.Mutex
	signals map[string]models.Signal
}

func (r *wsSignalRepo) BeginTx(ctx context.Context) (database.Transaction, error) { return nil, nil }

func (r *wsSignalRepo) Create(_ context.Context, s *models.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals[s.ID] = *s
	return nil
}

func (r *wsSignalRepo) Get(_ context.Context, id string) (*models.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.signals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ss := s
	return &ss, nil
}

func (r *wsSignalRepo) Update(_ context.Context, s *models.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.signals[s.ID]; !ok {
		return repository.ErrNotFound
	}
	r.signals[s.ID] = *s
	return nil
}

func (r *wsSignalRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.signals[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.signals, id)
	return nil
}

func (r *wsSignalRepo) List(_ context.Context, _ models.DeviceFilters, _, _ int) ([]*models.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Signal, 0, len(r.signals))
	for id := range r.signals {
		s := r.signals[id]
		out = append(out, &s)
	}
	return out, nil
}

func (r *wsSignalRepo) UpdateLastSeen(_ context.Context, id string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.signals[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.LastSeen = lastSeen
	r.signals[id] = s
	return nil
}

func (r *wsSignalRepo) SetStatus(_ context.Context, id string, status models.DeviceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.signals[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Status = status
	r.signals[id] = s
	return nil
}

type wsAnalyticsRepo struct{}

func (wsAnalyticsRepo) BeginTx(ctx context.Context) (database.Transaction, error) { return nil, nil }
func (wsAnalyticsRepo) InsertSample(context.Context, *models.AnalyticsSample) error {
	return nil
}
func (wsAnalyticsRepo) SamplesSince(context.Context, time.Time) ([]models.AnalyticsSample, error) {
	return nil, nil
}
func (wsAnalyticsRepo) SamplesBetween(context.Context, time.Time, time.Time) ([]models.AnalyticsSample, error) {
	return nil, nil
}
func (wsAnalyticsRepo) SamplesByJunction(context.Context, string, time.Time, time.Time) ([]models.AnalyticsSample, error) {
	return nil, nil
}
func (wsAnalyticsRepo) DeleteByJunction(context.Context, string, database.Transaction) error {
	return nil
}
func (wsAnalyticsRepo) DeleteOldSamples(context.Context, time.Time) error { return nil }

type wsSink struct{}

func (wsSink) Submit(models.AnalyticsSample) bool { return true }

type wsFixture struct {
	bus     *bus.Bus
	cameras *wsCameraRepo
	session *session
	client  *bus.Client
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	b := bus.New()
	cameras := &wsCameraRepo{cameras: map[string]models.Camera{
		"cam_1": {ID: "cam_1", Name: "Main St North", Status: models.StatusOffline},
		"cam_2": {ID: "cam_2", Name: "Main St South", Status: models.StatusOffline},
	}}
	signals := &wsSignalRepo{signals: map[string]models.Signal{}}
	coord := coordinator.New(cameras, signals, wsAnalyticsRepo{}, b, wsSink{}, testDeviceKey)

	client := bus.NewClient(b, nil)
	s := &session{handler: &Handler{bus: b, coord: coord}, client: client}
	return &wsFixture{bus: b, cameras: cameras, session: s, client: client}
}

func mustEnvelope(t *testing.T, event string, payload interface{}) bus.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return bus.Envelope{Event: event, Data: data}
}

func drainClient(c *bus.Client) []bus.Message {
	var out []bus.Message
	for {
		select {
		case msg := <-c.Outbox():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestDeviceDataBeforeConnectIsRejected(t *testing.T) {
	f := newWSFixture(t)

	f.session.handle(mustEnvelope(t, "deviceData", deviceDataPayload{
		Type:    "camera",
		ID:      "cam_1",
		Metrics: models.TelemetryPayload{VehicleCount: 42},
	}))

	msgs := drainClient(f.client)
	require.Len(t, msgs, 1)
	assert.Equal(t, bus.EventError, msgs[0].Event)

	stored, err := f.cameras.Get(context.Background(), "cam_1")
	require.NoError(t, err)
	assert.Nil(t, stored.Metrics)
}

func TestDeviceDataForAnotherDeviceIsRejected(t *testing.T) {
	f := newWSFixture(t)

	f.session.handle(mustEnvelope(t, "deviceConnect", deviceConnectPayload{
		Type:   "camera",
		ID:     "cam_1",
		APIKey: testDeviceKey,
	}))
	require.Empty(t, drainClient(f.client))

	f.session.handle(mustEnvelope(t, "deviceData", deviceDataPayload{
		Type:    "camera",
		ID:      "cam_2",
		Metrics: models.TelemetryPayload{VehicleCount: 42},
	}))

	msgs := drainClient(f.client)
	require.Len(t, msgs, 1)
	assert.Equal(t, bus.EventError, msgs[0].Event)

	stored, err := f.cameras.Get(context.Background(), "cam_2")
	require.NoError(t, err)
	assert.Nil(t, stored.Metrics)
	assert.Equal(t, models.StatusOffline, stored.Status)
}

func TestDeviceDataAfterConnectUpdatesDevice(t *testing.T) {
	f := newWSFixture(t)

	f.session.handle(mustEnvelope(t, "deviceConnect", deviceConnectPayload{
		Type:   "camera",
		ID:     "cam_1",
		APIKey: testDeviceKey,
	}))
	f.session.handle(mustEnvelope(t, "deviceData", deviceDataPayload{
		Type:    "camera",
		ID:      "cam_1",
		Metrics: models.TelemetryPayload{VehicleCount: 42, CongestionLevel: models.CongestionLow},
	}))

	assert.Empty(t, drainClient(f.client))

	stored, err := f.cameras.Get(context.Background(), "cam_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, stored.Status)
	require.NotNil(t, stored.Metrics)
	assert.Equal(t, 42, stored.Metrics.VehicleCount)
}

func TestDeviceConnectWithWrongKeyLeavesSessionUnconnected(t *testing.T) {
	f := newWSFixture(t)

	f.session.handle(mustEnvelope(t, "deviceConnect", deviceConnectPayload{
		Type:   "camera",
		ID:     "cam_1",
		APIKey: "wrong-key",
	}))
	msgs := drainClient(f.client)
	require.Len(t, msgs, 1)
	assert.Equal(t, bus.EventError, msgs[0].Event)

	// The failed connect must not open the telemetry path.
	f.session.handle(mustEnvelope(t, "deviceData", deviceDataPayload{
		Type:    "camera",
		ID:      "cam_1",
		Metrics: models.TelemetryPayload{VehicleCount: 42},
	}))
	msgs = drainClient(f.client)
	require.Len(t, msgs, 1)
	assert.Equal(t, bus.EventError, msgs[0].Event)
}
